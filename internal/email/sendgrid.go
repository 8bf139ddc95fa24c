package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridEndpoint    = "/v3/mail/send"
)

// ErrAPIKeyNotConfigured はユーザー設定にも環境変数にもAPIキーがない場合のエラー。
var ErrAPIKeyNotConfigured = errors.New("SendGrid API key not configured")

// Recipient はメールの宛先。
type Recipient struct {
	Email string
	Name  string
}

// Message は配信するメール1通分の内容。宛先ごとに個別のパーソナライズを作る。
type Message struct {
	Subject    string
	HTML       string
	Recipients []Recipient
}

// Sender はメール配信のインターフェース。
// apiKeyが空の場合は実装側の既定キーを使う。
type Sender interface {
	Send(ctx context.Context, apiKey string, msg Message) error
}

// SendGridSender はSendGrid v3 APIによるSender実装。
type SendGridSender struct {
	fromEmail  string
	defaultKey string
	logger     *slog.Logger
	host       string // テスト用に差し替え可能
}

var _ Sender = (*SendGridSender)(nil)

// NewSendGridSender はSendGridSenderを生成する。
// defaultKeyはユーザーがAPIキーを設定していない場合に使うプロセス共通のキー。
func NewSendGridSender(fromEmail, defaultKey string, logger *slog.Logger) *SendGridSender {
	return &SendGridSender{
		fromEmail:  fromEmail,
		defaultKey: defaultKey,
		logger:     logger,
		host:       defaultSendGridHost,
	}
}

// Send はメールを送信する。2xx以外は "SendGrid error: Status code N" のエラーになる。
func (s *SendGridSender) Send(ctx context.Context, apiKey string, msg Message) error {
	if apiKey == "" {
		apiKey = s.defaultKey
	}
	if apiKey == "" {
		return ErrAPIKeyNotConfigured
	}
	if len(msg.Recipients) == 0 {
		return errors.New("No subscribers to send to")
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail("", s.fromEmail))
	m.Subject = msg.Subject
	for _, r := range msg.Recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail(r.Name, r.Email))
		m.AddPersonalizations(p)
	}
	m.AddContent(mail.NewContent("text/html", msg.HTML))

	request := sendgrid.GetRequest(apiKey, sendGridEndpoint, s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		s.logger.Error("SendGrid APIの呼び出しに失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("Error sending newsletter: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("SendGrid APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", resp.Body),
		)
		return fmt.Errorf("SendGrid error: Status code %d", resp.StatusCode)
	}

	s.logger.Info("ニュースレターを送信しました", slog.Int("recipients", len(msg.Recipients)))
	return nil
}
