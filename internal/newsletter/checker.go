package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
)

// ItemResult は予約チェックで処理したニュースレター1件の結果。
type ItemResult struct {
	ID         string `json:"id"`
	Result     string `json:"result"`
	Recipients int    `json:"recipients,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CheckResult は予約チェック1回分の結果。
type CheckResult struct {
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results"`
}

// Checker は予約時刻を過ぎたニュースレターを順に送信する。
type Checker struct {
	newsletterRepo repository.NewsletterRepository
	dispatcher     *Dispatcher
	logger         *slog.Logger
	now            func() time.Time
}

// NewChecker はCheckerを生成する。
func NewChecker(newsletterRepo repository.NewsletterRepository, dispatcher *Dispatcher, logger *slog.Logger) *Checker {
	return &Checker{
		newsletterRepo: newsletterRepo,
		dispatcher:     dispatcher,
		logger:         logger,
		now:            time.Now,
	}
}

// Run は scheduled かつ予約時刻 <= 現在 のニュースレターを1件ずつ送信する。
// 1件の失敗で残りの処理は止めない。
func (c *Checker) Run(ctx context.Context) (*CheckResult, error) {
	due, err := c.newsletterRepo.ListDue(ctx, c.now())
	if err != nil {
		return nil, fmt.Errorf("予約ニュースレターの取得に失敗しました: %w", err)
	}

	result := &CheckResult{Results: make([]ItemResult, 0, len(due))}
	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		result.Results = append(result.Results, c.process(ctx, n))
	}
	result.Processed = len(result.Results)

	if result.Processed > 0 {
		c.logger.Info("予約ニュースレターのチェックが完了しました",
			slog.Int("due", len(due)),
			slog.Int("processed", result.Processed),
		)
	}
	return result, nil
}

func (c *Checker) process(ctx context.Context, n *model.Newsletter) ItemResult {
	outcome, err := c.dispatcher.Send(ctx, n, TriggerScheduled)
	if err != nil {
		c.logger.Error("予約ニュースレターの処理中にエラーが発生しました",
			slog.String("newsletter_id", n.ID),
			slog.String("error", err.Error()),
		)
		return ItemResult{ID: n.ID, Result: metrics.ResultFailed, Reason: err.Error()}
	}
	return ItemResult{
		ID:         n.ID,
		Result:     outcome.Result,
		Recipients: outcome.Recipients,
		Reason:     outcome.Reason,
	}
}
