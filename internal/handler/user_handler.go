package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	UpdateIntegrations(ctx context.Context, userID string, settings user.IntegrationSettings) (*model.User, error)
	ChangePassword(ctx context.Context, userID string, input user.PasswordChange) error
	Dashboard(ctx context.Context, userID string) (*model.DashboardStats, error)
}

// UserHandler は設定・ダッシュボードのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// settingsRequest は連携設定の更新リクエスト。
// 設定画面のフォームをそのまま送るため、空文字は連携解除を意味する。
type settingsRequest struct {
	NotionAPIKey     string `json:"notion_api_key"`
	SendGridAPIKey   string `json:"sendgrid_api_key"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

type settingsResponse struct {
	User           userResponse `json:"user"`
	TelegramChatID string       `json:"telegram_chat_id"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type dashboardResponse struct {
	FeedCount           int                  `json:"feed_count"`
	ArticleCount        int                  `json:"article_count"`
	DraftCount          int                  `json:"draft_count"`
	NewsletterCount     int                  `json:"newsletter_count"`
	RecentArticles      []articleResponse    `json:"recent_articles"`
	RecentDrafts        []draftResponse      `json:"recent_drafts"`
	RecentNewsletters   []newsletterResponse `json:"recent_newsletters"`
	UpcomingNewsletters []newsletterResponse `json:"upcoming_newsletters"`
	TotalRecipients     int                  `json:"total_recipients"`
	OpenRate            float64              `json:"open_rate"`
	ClickRate           float64              `json:"click_rate"`
}

// GetSettings は連携設定の状態を返す。
// GET /api/settings
func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{User: toUserResponse(u), TelegramChatID: u.TelegramChatID})
}

// UpdateSettings は連携設定を更新する。
// PUT /api/settings
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.service.UpdateIntegrations(r.Context(), userID, user.IntegrationSettings{
		NotionAPIKey:     req.NotionAPIKey,
		SendGridAPIKey:   req.SendGridAPIKey,
		TelegramBotToken: req.TelegramBotToken,
		TelegramChatID:   req.TelegramChatID,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{User: toUserResponse(u), TelegramChatID: u.TelegramChatID})
}

// ChangePassword はパスワードを変更する。
// PUT /api/settings/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), userID, user.PasswordChange{
		Current: req.CurrentPassword,
		New:     req.NewPassword,
		Confirm: req.ConfirmPassword,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard は集計値と最近のアクティビティを返す。
// GET /api/dashboard
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		FeedCount:           stats.FeedCount,
		ArticleCount:        stats.ArticleCount,
		DraftCount:          stats.DraftCount,
		NewsletterCount:     stats.NewsletterCount,
		RecentArticles:      mapSlice(stats.RecentArticles, toArticleResponse),
		RecentDrafts:        mapSlice(stats.RecentDrafts, toDraftResponse),
		RecentNewsletters:   mapSlice(stats.RecentNewsletters, toNewsletterResponse),
		UpcomingNewsletters: mapSlice(stats.UpcomingNewsletters, toNewsletterResponse),
		TotalRecipients:     stats.TotalRecipients,
		OpenRate:            stats.OpenRate,
		ClickRate:           stats.ClickRate,
	})
}
