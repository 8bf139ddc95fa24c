package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/newsletterman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	SchedulerAPIKey   string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	AuthService       AuthServiceInterface
	AuthConfig        AuthHandlerConfig
	FeedService       FeedServiceInterface
	ArticleService    ArticleServiceInterface
	DraftService      DraftServiceInterface
	NewsletterService NewsletterServiceInterface
	ScheduleChecker   ScheduleChecker
	SubscriberService SubscriberServiceInterface
	UserService       UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → (Session → RateLimit(General) → CSRF)
//
// /health, /metrics, /api/csrf-token, 登録・ログイン, 予約チェックはセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	feedHandler := NewFeedHandler(deps.FeedService)
	articleHandler := NewArticleHandler(deps.ArticleService)
	draftHandler := NewDraftHandler(deps.DraftService)
	newsletterHandler := NewNewsletterHandler(deps.NewsletterService, deps.ScheduleChecker)
	subscriberHandler := NewSubscriberHandler(deps.SubscriberService)
	userHandler := NewUserHandler(deps.UserService)

	fetchLimit := deps.RateLimiter.FetchMiddleware()

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// 外部スケジューラー用。セッションではなく共有シークレットで認証する。
	r.With(middleware.NewAPIKeyMiddleware(deps.SchedulerAPIKey)).
		Post("/api/check-scheduled", newsletterHandler.CheckScheduled)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)

		r.Get("/api/dashboard", userHandler.Dashboard)
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", userHandler.GetSettings)
			r.Put("/", userHandler.UpdateSettings)
			r.Put("/password", userHandler.ChangePassword)
		})

		r.Route("/api/feeds", func(r chi.Router) {
			r.Get("/", feedHandler.List)
			r.With(fetchLimit).Post("/", feedHandler.Create)
			r.Delete("/{id}", feedHandler.Delete)
			r.With(fetchLimit).Post("/{id}/fetch", feedHandler.FetchNow)
		})

		r.Get("/api/articles", articleHandler.List)

		r.Route("/api/drafts", func(r chi.Router) {
			r.Get("/", draftHandler.List)
			r.Post("/", draftHandler.Create)
			r.With(fetchLimit).Post("/generate", draftHandler.Generate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", draftHandler.Get)
				r.Put("/", draftHandler.Update)
				r.Delete("/", draftHandler.Delete)
				r.Post("/sync", draftHandler.Sync)
			})
		})

		r.Route("/api/newsletters", func(r chi.Router) {
			r.Get("/", newsletterHandler.List)
			r.Post("/", newsletterHandler.Schedule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", newsletterHandler.Get)
				r.Post("/send", newsletterHandler.SendNow)
				r.Post("/cancel", newsletterHandler.Cancel)
			})
		})

		r.Route("/api/subscribers", func(r chi.Router) {
			r.Get("/", subscriberHandler.List)
			r.Post("/", subscriberHandler.Add)
			r.Post("/{id}/toggle", subscriberHandler.Toggle)
			r.Delete("/{id}", subscriberHandler.Delete)
		})
	})

	return r
}
