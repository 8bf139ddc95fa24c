package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsletterman/internal/draft"
	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
)

// DraftServiceInterface は下書きハンドラーが必要とするサービスインターフェース。
type DraftServiceInterface interface {
	List(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error)
	Get(ctx context.Context, userID, draftID string) (*model.Draft, error)
	Create(ctx context.Context, userID, title, content string) (*draft.Result, error)
	Generate(ctx context.Context, userID string, articleIDs []string) (*draft.Result, error)
	Update(ctx context.Context, userID, draftID, title, content string) (*draft.Result, error)
	SyncFromWorkspace(ctx context.Context, userID, draftID string) (*draft.Result, error)
	Delete(ctx context.Context, userID, draftID string) error
}

// DraftHandler は下書き管理のHTTPハンドラー。
type DraftHandler struct {
	service DraftServiceInterface
}

// NewDraftHandler はDraftHandlerを生成する。
func NewDraftHandler(service DraftServiceInterface) *DraftHandler {
	return &DraftHandler{service: service}
}

type draftContentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type generateDraftRequest struct {
	ArticleIDs []string `json:"article_ids"`
}

// draftResultResponse は保存系操作のレスポンス。
// Notion同期の失敗はwarningsに入る。
type draftResultResponse struct {
	Draft    draftResponse `json:"draft"`
	Warnings []string      `json:"warnings"`
}

func toDraftResultResponse(result *draft.Result) draftResultResponse {
	return draftResultResponse{
		Draft:    toDraftResponse(result.Draft),
		Warnings: warningsOrEmpty(result.Warnings),
	}
}

// List は下書き一覧を返す。
// GET /api/drafts?status=draft
func (h *DraftHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	drafts, err := h.service.List(r.Context(), userID, model.DraftStatus(r.URL.Query().Get("status")))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"drafts": mapSlice(drafts, toDraftResponse),
	})
}

// Get は下書きを返す。
// GET /api/drafts/{id}
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResponse(d))
}

// Create は下書きを作成する。
// POST /api/drafts
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req draftContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDraftResultResponse(result))
}

// Generate は選択した記事から下書きを生成する。
// POST /api/drafts/generate
func (h *DraftHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req generateDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Generate(r.Context(), userID, req.ArticleIDs)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDraftResultResponse(result))
}

// Update は下書きを更新する。
// PUT /api/drafts/{id}
func (h *DraftHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req draftContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResultResponse(result))
}

// Sync はNotionページの内容を下書きに取り込む。
// POST /api/drafts/{id}/sync
func (h *DraftHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.SyncFromWorkspace(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftResultResponse(result))
}

// Delete は下書きを削除する。
// DELETE /api/drafts/{id}
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
