package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsletterman/internal/feed"
	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	Create(ctx context.Context, userID string, input feed.CreateInput) (*feed.CreateResult, error)
	List(ctx context.Context, userID string) ([]*model.Feed, error)
	Delete(ctx context.Context, userID, feedID string) error
	// FetchNow は即時取り込みを行い、新規記事数を返す。
	FetchNow(ctx context.Context, userID, feedID string) (int, error)
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

type createFeedRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type createFeedResponse struct {
	Feed        feedResponse `json:"feed"`
	NewArticles int          `json:"new_articles"`
	Warnings    []string     `json:"warnings"`
}

// List はフィード一覧を返す。
// GET /api/feeds
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	feeds, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feeds": mapSlice(feeds, toFeedResponse),
	})
}

// Create はフィードを登録し、即時取り込みの結果を返す。
// 取り込みに失敗しても登録は成功として201を返し、warningsに理由を入れる。
// POST /api/feeds
func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createFeedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), userID, feed.CreateInput{
		Name: req.Name,
		URL:  req.URL,
		Kind: model.FeedKind(req.Kind),
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createFeedResponse{
		Feed:        toFeedResponse(result.Feed),
		NewArticles: result.NewArticles,
		Warnings:    warningsOrEmpty(result.Warnings),
	})
}

// Delete はフィードと記事を削除する。
// DELETE /api/feeds/{id}
func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// FetchNow はフィードを即時取り込みする。
// POST /api/feeds/{id}/fetch
func (h *FeedHandler) FetchNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.FetchNow(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_articles": n})
}
