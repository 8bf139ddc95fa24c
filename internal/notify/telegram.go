// Package notify はチャットへの状態通知機能を提供する。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Notifier はチャットにテキストメッセージを送る。
// 呼び出し元は失敗をログに残すだけで、処理結果には反映しない。
type Notifier interface {
	Notify(ctx context.Context, botToken, chatID, text string) error
}

// Telegram はTelegram Bot APIのsendMessageによるNotifier実装。
type Telegram struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram はTelegramを生成する。
func NewTelegram(httpClient *http.Client, logger *slog.Logger) *Telegram {
	return &Telegram{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultTelegramBaseURL,
	}
}

// Notify はHTMLパースモードでメッセージを送信する。
func (t *Telegram) Notify(ctx context.Context, botToken, chatID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	endpoint := t.baseURL + "/bot" + botToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// URLにトークンが含まれるためエラー文字列はそのまま出さない
		return fmt.Errorf("Telegram APIの呼び出しに失敗しました: %w", redactToken(err, botToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiResp struct {
			Description string `json:"description"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(body, &apiResp)
		return fmt.Errorf("Telegram APIがステータス %d を返しました: %s", resp.StatusCode, apiResp.Description)
	}

	t.logger.Info("Telegram通知を送信しました", slog.String("chat_id", chatID))
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactToken(err error, token string) error {
	if token == "" {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "***"), err: err}
}

// SentMessage は送信完了通知の本文を返す。
func SentMessage(subject string, recipients int) string {
	return fmt.Sprintf("Newsletter '%s' sent to %d subscribers", subject, recipients)
}

// ScheduledMessage は予約完了通知の本文を返す。scheduledForは "YYYY-MM-DD HH:MM" 形式。
func ScheduledMessage(subject, scheduledFor string) string {
	return fmt.Sprintf("Newsletter '%s' scheduled for %s", subject, scheduledFor)
}
