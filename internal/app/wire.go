package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsletterman/internal/article"
	"github.com/hitoshi/newsletterman/internal/auth"
	"github.com/hitoshi/newsletterman/internal/compose"
	"github.com/hitoshi/newsletterman/internal/config"
	"github.com/hitoshi/newsletterman/internal/draft"
	"github.com/hitoshi/newsletterman/internal/email"
	"github.com/hitoshi/newsletterman/internal/feed"
	"github.com/hitoshi/newsletterman/internal/ingest"
	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/newsletter"
	"github.com/hitoshi/newsletterman/internal/notify"
	"github.com/hitoshi/newsletterman/internal/notion"
	"github.com/hitoshi/newsletterman/internal/repository"
	"github.com/hitoshi/newsletterman/internal/security"
	"github.com/hitoshi/newsletterman/internal/subscriber"
	"github.com/hitoshi/newsletterman/internal/summarize"
	"github.com/hitoshi/newsletterman/internal/user"
)

// 外部APIクライアントのタイムアウト
const (
	summarizerTimeout = 60 * time.Second
	notionTimeout     = 30 * time.Second
	telegramTimeout   = 10 * time.Second
)

// services はserve・workerで共有するドメインサービス群。
type services struct {
	sessionRepo *repository.PostgresSessionRepo
	feedRepo    *repository.PostgresFeedRepo

	ingester   *ingest.Ingester
	auth       *auth.Service
	feeds      *feed.FeedService
	articles   *article.ArticleService
	drafts     *draft.DraftService
	newsletter *newsletter.NewsletterService
	checker    *newsletter.Checker
	subscriber *subscriber.SubscriberService
	users      *user.Service

	closers []io.Closer
}

// Close は要約クライアントなど後始末が必要なリソースを閉じる。
func (s *services) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
}

// buildServices はリポジトリ・外部クライアント・ドメインサービスを組み立てる。
func buildServices(ctx context.Context, cfg *config.Config, db *sql.DB, recorder metrics.Recorder, logger *slog.Logger) (*services, error) {
	// 1. リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	feedRepo := repository.NewPostgresFeedRepo(db)
	articleRepo := repository.NewPostgresArticleRepo(db)
	draftRepo := repository.NewPostgresDraftRepo(db)
	newsletterRepo := repository.NewPostgresNewsletterRepo(db)
	subscriberRepo := repository.NewPostgresSubscriberRepo(db)

	// 2. 取り込み
	guard := security.NewSSRFGuard(cfg.FetchTimeout, cfg.FetchMaxSize)
	sanitizer := security.NewContentSanitizer()
	ingester := ingest.NewIngester(feedRepo, articleRepo, guard, sanitizer, recorder, logger)

	// 3. 外部連携
	summarizer, err := summarize.New(ctx, cfg, &http.Client{Timeout: summarizerTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	var closers []io.Closer
	if c, ok := summarizer.(io.Closer); ok {
		closers = append(closers, c)
	}
	logger.Info("summarizer selected", slog.String("summarizer", summarizer.Name()))

	notionClient := notion.NewClient(&http.Client{Timeout: notionTimeout}, logger)
	telegram := notify.NewTelegram(&http.Client{Timeout: telegramTimeout}, logger)
	formatter := email.NewFormatter(email.NewGoldmarkRenderer(), sanitizer, logger)
	sender := email.NewSendGridSender(cfg.FromEmail, cfg.SendGridAPIKey, logger)

	// 4. ドメインサービス
	dispatcher := newsletter.NewDispatcher(
		newsletterRepo, draftRepo, subscriberRepo, userRepo,
		formatter, sender, telegram, recorder, logger,
	)

	composer := compose.NewComposer(summarizer, recorder, logger)

	return &services{
		sessionRepo: sessionRepo,
		feedRepo:    feedRepo,
		ingester:    ingester,
		auth:        auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge}),
		feeds:       feed.NewFeedService(feedRepo, guard, feed.NewLinkDetector(guard), ingester),
		articles:    article.NewArticleService(articleRepo, feedRepo),
		drafts:      draft.NewDraftService(draftRepo, articleRepo, userRepo, composer, notionClient, logger),
		newsletter:  newsletter.NewNewsletterService(newsletterRepo, draftRepo, userRepo, dispatcher, telegram, logger),
		checker:     newsletter.NewChecker(newsletterRepo, dispatcher, logger),
		subscriber:  subscriber.NewSubscriberService(subscriberRepo),
		users:       user.NewService(userRepo, feedRepo, articleRepo, draftRepo, newsletterRepo),
		closers:     closers,
	}, nil
}
