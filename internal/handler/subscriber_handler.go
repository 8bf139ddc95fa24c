package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
)

// SubscriberServiceInterface は購読者ハンドラーが必要とするサービスインターフェース。
type SubscriberServiceInterface interface {
	Add(ctx context.Context, userID, email, name string) (*model.Subscriber, error)
	List(ctx context.Context, userID string) ([]*model.Subscriber, error)
	Toggle(ctx context.Context, userID, subscriberID string) (*model.Subscriber, error)
	Delete(ctx context.Context, userID, subscriberID string) error
}

// SubscriberHandler は購読者管理のHTTPハンドラー。
type SubscriberHandler struct {
	service SubscriberServiceInterface
}

// NewSubscriberHandler はSubscriberHandlerを生成する。
func NewSubscriberHandler(service SubscriberServiceInterface) *SubscriberHandler {
	return &SubscriberHandler{service: service}
}

type addSubscriberRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// List は購読者一覧を返す。
// GET /api/subscribers
func (h *SubscriberHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	subs, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscribers": mapSlice(subs, toSubscriberResponse),
	})
}

// Add は購読者を追加する。
// POST /api/subscribers
func (h *SubscriberHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req addSubscriberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.Add(r.Context(), userID, req.Email, req.Name)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriberResponse(sub))
}

// Toggle は購読者の有効・無効を切り替える。
// POST /api/subscribers/{id}/toggle
func (h *SubscriberHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	sub, err := h.service.Toggle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriberResponse(sub))
}

// Delete は購読者を削除する。
// DELETE /api/subscribers/{id}
func (h *SubscriberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
