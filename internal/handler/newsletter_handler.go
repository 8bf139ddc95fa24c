package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/newsletter"
)

// NewsletterServiceInterface はニュースレターハンドラーが必要とするサービスインターフェース。
type NewsletterServiceInterface interface {
	Schedule(ctx context.Context, userID string, input newsletter.ScheduleInput) (*model.Newsletter, error)
	List(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error)
	Get(ctx context.Context, userID, newsletterID string) (*model.Newsletter, error)
	SendNow(ctx context.Context, userID, newsletterID string) (*newsletter.Outcome, error)
	Cancel(ctx context.Context, userID, newsletterID string) error
}

// ScheduleChecker は予約時刻を過ぎたニュースレターを処理する。
type ScheduleChecker interface {
	Run(ctx context.Context) (*newsletter.CheckResult, error)
}

// NewsletterHandler はニュースレター管理のHTTPハンドラー。
type NewsletterHandler struct {
	service NewsletterServiceInterface
	checker ScheduleChecker
}

// NewNewsletterHandler はNewsletterHandlerを生成する。
func NewNewsletterHandler(service NewsletterServiceInterface, checker ScheduleChecker) *NewsletterHandler {
	return &NewsletterHandler{
		service: service,
		checker: checker,
	}
}

type scheduleRequest struct {
	DraftID       string `json:"draft_id"`
	Subject       string `json:"subject"`
	ScheduledDate string `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime string `json:"scheduled_time"` // HH:MM
}

type sendResponse struct {
	Result     string             `json:"result"`
	Recipients int                `json:"recipients"`
	Reason     string             `json:"reason,omitempty"`
	Newsletter newsletterResponse `json:"newsletter"`
}

// List はニュースレター一覧を返す。
// GET /api/newsletters?status=scheduled
func (h *NewsletterHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), userID, model.NewsletterStatus(r.URL.Query().Get("status")))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"newsletters": mapSlice(list, toNewsletterResponse),
	})
}

// Get はニュースレターを返す。
// GET /api/newsletters/{id}
func (h *NewsletterHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNewsletterResponse(n))
}

// Schedule は下書きからニュースレターを予約する。
// POST /api/newsletters
func (h *NewsletterHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.service.Schedule(r.Context(), userID, newsletter.ScheduleInput{
		DraftID: req.DraftID,
		Subject: req.Subject,
		Date:    req.ScheduledDate,
		Time:    req.ScheduledTime,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNewsletterResponse(n))
}

// SendNow はニュースレターを即時送信する。
// 配信失敗はニュースレターの状態として記録されるため、200で結果を返す。
// POST /api/newsletters/{id}/send
func (h *NewsletterHandler) SendNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	outcome, err := h.service.SendNow(r.Context(), userID, id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	n, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		Result:     outcome.Result,
		Recipients: outcome.Recipients,
		Reason:     outcome.Reason,
		Newsletter: toNewsletterResponse(n),
	})
}

// Cancel は予約を取り消す。
// POST /api/newsletters/{id}/cancel
func (h *NewsletterHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckScheduled は予約時刻を過ぎたニュースレターを送信する。
// 外部スケジューラーからAPIキー付きで呼び出される。
// POST /api/check-scheduled
func (h *NewsletterHandler) CheckScheduled(w http.ResponseWriter, r *http.Request) {
	result, err := h.checker.Run(r.Context())
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
