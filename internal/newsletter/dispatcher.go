// Package newsletter はニュースレターの予約・配信・取消を提供する。
//
// 状態は scheduled → sending → sent|failed の順にのみ遷移し、failed からは再送できる。
// 手動送信と予約チェックは同じ Dispatcher.Send を通る。
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsletterman/internal/email"
	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/notify"
	"github.com/hitoshi/newsletterman/internal/repository"
)

// ReasonNoActiveSubscribers は予約送信時に購読者がいなかった場合の失敗理由。
const ReasonNoActiveSubscribers = "No active subscribers"

const reasonAlreadyProcessing = "already being processed"

// sendableStatuses は送信を開始できる状態。
var sendableStatuses = []model.NewsletterStatus{model.NewsletterStatusScheduled, model.NewsletterStatusFailed}

// Trigger は送信のきっかけを表す。
type Trigger int

const (
	// TriggerManual はユーザー操作による即時送信。
	TriggerManual Trigger = iota
	// TriggerScheduled は予約チェックによる送信。
	TriggerScheduled
)

// Formatter は件名とMarkdown本文から配信用HTMLを作る。
type Formatter interface {
	Format(subject, markdown string) (string, error)
}

// Outcome は1件の送信処理の結果。
type Outcome struct {
	Result     string // metrics.ResultSent / ResultFailed / ResultSkipped
	Recipients int
	Reason     string
}

// Dispatcher はニュースレター1件の送信と状態遷移を行う。
type Dispatcher struct {
	newsletterRepo repository.NewsletterRepository
	draftRepo      repository.DraftRepository
	subscriberRepo repository.SubscriberRepository
	userRepo       repository.UserRepository
	formatter      Formatter
	sender         email.Sender
	notifier       notify.Notifier
	recorder       metrics.Recorder
	logger         *slog.Logger
	now            func() time.Time
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(
	newsletterRepo repository.NewsletterRepository,
	draftRepo repository.DraftRepository,
	subscriberRepo repository.SubscriberRepository,
	userRepo repository.UserRepository,
	formatter Formatter,
	sender email.Sender,
	notifier notify.Notifier,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		newsletterRepo: newsletterRepo,
		draftRepo:      draftRepo,
		subscriberRepo: subscriberRepo,
		userRepo:       userRepo,
		formatter:      formatter,
		sender:         sender,
		notifier:       notifier,
		recorder:       recorder,
		logger:         logger,
		now:            time.Now,
	}
}

// Send はニュースレターを有効な購読者全員に送信する。
//
// 送信前に sending への遷移を確定させ、他の処理が先に遷移させていた場合は skipped を返す。
// 配信失敗は failed として理由を保存し、エラーではなく Outcome で返す。
// 戻り値のエラーは前提条件違反（*model.APIError）かDB障害のみ。
func (d *Dispatcher) Send(ctx context.Context, n *model.Newsletter, trigger Trigger) (*Outcome, error) {
	if !n.Status.Sendable() {
		return nil, model.NewNewsletterNotSendableError()
	}

	subscribers, err := d.subscriberRepo.ListActiveByUserID(ctx, n.UserID)
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}
	if len(subscribers) == 0 {
		if trigger == TriggerManual {
			return nil, model.NewNoActiveSubscribersError()
		}
		// 別の処理が先に sending/sent へ進めていた場合は上書きしない
		ok, err := d.newsletterRepo.MarkFailedFrom(ctx, n.ID, sendableStatuses, ReasonNoActiveSubscribers)
		if err != nil {
			return nil, err
		}
		if !ok {
			return d.finish(n, &Outcome{Result: metrics.ResultSkipped, Reason: reasonAlreadyProcessing}), nil
		}
		return d.finish(n, &Outcome{Result: metrics.ResultFailed, Reason: ReasonNoActiveSubscribers}), nil
	}

	ok, err := d.newsletterRepo.TransitionStatus(ctx, n.ID, sendableStatuses, model.NewsletterStatusSending)
	if err != nil {
		return nil, err
	}
	if !ok {
		if trigger == TriggerManual {
			return nil, model.NewNewsletterNotSendableError()
		}
		return d.finish(n, &Outcome{Result: metrics.ResultSkipped, Reason: reasonAlreadyProcessing}), nil
	}

	// sending 確定後の状態更新は呼び出し元のキャンセルで中断させない
	writeCtx := context.WithoutCancel(ctx)

	user, reason := d.deliver(ctx, n, subscribers)
	if reason != "" {
		if err := d.newsletterRepo.MarkFailed(writeCtx, n.ID, reason); err != nil {
			return nil, err
		}
		return d.finish(n, &Outcome{Result: metrics.ResultFailed, Reason: reason}), nil
	}

	if err := d.newsletterRepo.MarkSent(writeCtx, n.ID, d.now(), len(subscribers)); err != nil {
		return nil, err
	}
	outcome := d.finish(n, &Outcome{Result: metrics.ResultSent, Recipients: len(subscribers)})

	if user.HasTelegram() {
		msg := notify.SentMessage(n.Subject, len(subscribers))
		if err := d.notifier.Notify(writeCtx, user.TelegramBotToken, user.TelegramChatID, msg); err != nil {
			d.logger.Warn("送信完了通知に失敗しました",
				slog.String("newsletter_id", n.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return outcome, nil
}

// deliver は本文を整形して配信APIに渡す。失敗した場合は理由を返す。
func (d *Dispatcher) deliver(ctx context.Context, n *model.Newsletter, subscribers []*model.Subscriber) (*model.User, string) {
	draft, err := d.draftRepo.FindByID(ctx, n.DraftID)
	if err != nil {
		return nil, err.Error()
	}
	if draft == nil {
		return nil, "Draft not found"
	}

	user, err := d.userRepo.FindByID(ctx, n.UserID)
	if err != nil {
		return nil, err.Error()
	}
	if user == nil {
		return nil, "User not found"
	}

	html, err := d.formatter.Format(n.Subject, draft.Content)
	if err != nil {
		return nil, err.Error()
	}

	recipients := make([]email.Recipient, 0, len(subscribers))
	for _, s := range subscribers {
		recipients = append(recipients, email.Recipient{Email: s.Email, Name: s.Name})
	}
	if err := d.sender.Send(ctx, user.SendGridAPIKey, email.Message{
		Subject:    n.Subject,
		HTML:       html,
		Recipients: recipients,
	}); err != nil {
		return nil, err.Error()
	}
	return user, ""
}

func (d *Dispatcher) finish(n *model.Newsletter, o *Outcome) *Outcome {
	d.recorder.RecordDispatch(o.Result, o.Recipients)

	attrs := []any{
		slog.String("newsletter_id", n.ID),
		slog.String("result", o.Result),
		slog.Int("recipients", o.Recipients),
	}
	if o.Reason != "" {
		attrs = append(attrs, slog.String("reason", o.Reason))
	}
	if o.Result == metrics.ResultFailed {
		d.logger.Error("ニュースレターの送信に失敗しました", attrs...)
	} else {
		d.logger.Info("ニュースレターの送信処理が完了しました", attrs...)
	}
	return o
}
