// Package fetch はフィードの定期取り込み処理を提供する。
package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// FeedLister は取り込み対象フィードの取得インターフェース。
type FeedLister interface {
	ListAll(ctx context.Context) ([]*model.Feed, error)
}

// FeedIngester は1フィード分の取り込みを行うインターフェース。
type FeedIngester interface {
	Ingest(ctx context.Context, feed *model.Feed) ([]*model.Article, error)
}

// Scheduler は全フィードの定期取り込みと並列制御を行う。
// semaphoreパターンで同時取り込み数を制限する。
type Scheduler struct {
	feeds          FeedLister
	ingester       FeedIngester
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合は5を使用する。
func NewScheduler(feeds FeedLister, ingester FeedIngester, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		feeds:          feeds,
		ingester:       ingester,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start はinterval間隔で取り込みサイクルを実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全フィードを1回ずつ取り込み、新規記事の合計数を返す。
// 個々のフィードの失敗はログに残して他のフィードの処理を続ける。
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	feeds, err := s.feeds.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(feeds) == 0 {
		s.logger.Info("取り込み対象のフィードはありません")
		return 0, nil
	}

	s.logger.Info("取り込みサイクルを開始します", slog.Int("feed_count", len(feeds)))

	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)

	for _, feed := range feeds {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }()

			articles, err := s.ingester.Ingest(ctx, f)
			if err != nil {
				// Ingester側でエラー内容は記録済み
				return
			}
			mu.Lock()
			total += len(articles)
			mu.Unlock()
		}(feed)
	}
	wg.Wait()

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Int("new_articles", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return total, nil
}
