package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/newsletterman/internal/article"
	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
)

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	List(ctx context.Context, userID string, filter model.ArticleFilter) (*article.ListResult, error)
}

// ArticleHandler は記事一覧のHTTPハンドラー。
type ArticleHandler struct {
	service ArticleServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

type listArticlesResponse struct {
	Articles   []articleResponse `json:"articles"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// List は記事一覧を返す。
// GET /api/articles?feed_id=xxx&unused_only=true&page=2
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := model.ArticleFilter{
		FeedID:     q.Get("feed_id"),
		UnusedOnly: q.Get("unused_only") == "true" || q.Get("unused_only") == "1",
	}
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			middleware.WriteError(w, r, model.NewValidationError("pageは1以上の整数で指定してください。"))
			return
		}
		filter.Page = page
	}

	result, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listArticlesResponse{
		Articles:   mapSlice(result.Articles, toArticleResponse),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}
