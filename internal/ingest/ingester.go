// Package ingest はフィードから記事を取り込む機能を提供する。
//
// syndication 種別はRSS/Atomのエントリを1件ずつ、webpage 種別はページ全体を1件の記事として保存する。
// いずれも (feed_id, url) で既存記事を判定し、同じ記事を二度保存しない。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
	"github.com/hitoshi/newsletterman/internal/security"
)

const userAgent = "Newsletterman/1.0 (+https://github.com/hitoshi/newsletterman)"

// Ingester はフィード種別に応じた取り込み処理を行う。
type Ingester struct {
	feedRepo    repository.FeedRepository
	articleRepo repository.ArticleRepository
	guard       security.URLGuard
	sanitizer   *security.ContentSanitizer
	recorder    metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewIngester はIngesterを生成する。
func NewIngester(
	feedRepo repository.FeedRepository,
	articleRepo repository.ArticleRepository,
	guard security.URLGuard,
	sanitizer *security.ContentSanitizer,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Ingester {
	return &Ingester{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		guard:       guard,
		sanitizer:   sanitizer,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Ingest はフィードを取り込み、新規に保存した記事を返す。
// 新しい記事がない場合は空スライスを返す。
// syndication の取得・解析失敗はエラーとして返し、webpage の取得失敗は0件として扱う。
func (i *Ingester) Ingest(ctx context.Context, feed *model.Feed) ([]*model.Article, error) {
	start := i.now()

	var (
		articles []*model.Article
		err      error
	)
	switch feed.Kind {
	case model.FeedKindSyndication:
		articles, err = i.ingestSyndication(ctx, feed)
	case model.FeedKindWebpage:
		articles, err = i.ingestWebpage(ctx, feed)
	default:
		err = fmt.Errorf("未対応のフィード種別です: %s", feed.Kind)
	}

	duration := i.now().Sub(start)
	if err != nil {
		i.recorder.RecordIngest(string(feed.Kind), metrics.ResultFailed, duration, 0)
		i.logger.Error("フィードの取り込みに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("url", feed.URL),
			slog.String("kind", string(feed.Kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if updateErr := i.feedRepo.UpdateLastFetchedAt(ctx, feed.ID, i.now()); updateErr != nil {
		i.logger.Error("最終取得日時の更新に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", updateErr.Error()),
		)
	}

	i.recorder.RecordIngest(string(feed.Kind), metrics.ResultOK, duration, len(articles))
	i.logger.Info("フィードの取り込みが完了しました",
		slog.String("feed_id", feed.ID),
		slog.String("kind", string(feed.Kind)),
		slog.Int("new_articles", len(articles)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	if articles == nil {
		articles = []*model.Article{}
	}
	return articles, nil
}

// download はSSRF防止付きクライアントでURLを取得し、ボディを返す。
func (i *Ingester) download(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if err := i.guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("URLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := i.guard.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("予期しないHTTPステータスです: %d", resp.StatusCode)
	}

	return i.guard.ReadBody(resp.Body)
}

// store は解析済み記事を保存する。(feed_id, url) が既に存在する場合は保存せずnilを返す。
func (i *Ingester) store(ctx context.Context, feedID string, parsed model.ParsedArticle) (*model.Article, error) {
	article := &model.Article{
		ID:          newID(),
		FeedID:      feedID,
		Title:       parsed.Title,
		URL:         parsed.URL,
		Content:     parsed.Content,
		PublishedAt: parsed.PublishedAt,
		FetchedAt:   i.now(),
	}
	created, err := i.articleRepo.Create(ctx, article)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}
	return article, nil
}
