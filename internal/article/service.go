// Package article は取り込み済み記事の閲覧機能を提供する。
package article

import (
	"context"
	"fmt"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
)

// DefaultPerPage は記事一覧の1ページあたりの件数。
const DefaultPerPage = 20

// ListResult は記事一覧の取得結果。
type ListResult struct {
	Articles   []*model.ArticleWithFeed
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// ArticleService は記事取得・フィルタリングのサービス。
type ArticleService struct {
	articleRepo repository.ArticleRepository
	feedRepo    repository.FeedRepository
}

// NewArticleService はArticleServiceの新しいインスタンスを生成する。
func NewArticleService(articleRepo repository.ArticleRepository, feedRepo repository.FeedRepository) *ArticleService {
	return &ArticleService{
		articleRepo: articleRepo,
		feedRepo:    feedRepo,
	}
}

// List はユーザーの記事を取得日時の降順で返す。
// FeedIDを指定した場合はユーザーが所有するフィードであることを確認する。
func (s *ArticleService) List(ctx context.Context, userID string, filter model.ArticleFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PerPage = DefaultPerPage

	if filter.FeedID != "" {
		feed, err := s.feedRepo.FindByIDAndUser(ctx, filter.FeedID, userID)
		if err != nil {
			return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
		}
		if feed == nil {
			return nil, model.NewFeedNotFoundError()
		}
	}

	articles, total, err := s.articleRepo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	return &ListResult{
		Articles:   articles,
		Total:      total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: (total + filter.PerPage - 1) / filter.PerPage,
	}, nil
}
