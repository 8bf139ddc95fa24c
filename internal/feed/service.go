// Package feed はフィード登録・管理のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
	"github.com/hitoshi/newsletterman/internal/security"
)

// Detector はフィードURL解決のインターフェース。
type Detector interface {
	ResolveFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Ingester はフィードの即時取り込みのインターフェース。
type Ingester interface {
	Ingest(ctx context.Context, feed *model.Feed) ([]*model.Article, error)
}

// CreateInput はフィード登録の入力値。
type CreateInput struct {
	Name string
	URL  string
	Kind model.FeedKind
}

// CreateResult はフィード登録の結果。
// 登録自体は成功したが取り込みに失敗した場合はWarningsに理由が入る。
type CreateResult struct {
	Feed        *model.Feed
	NewArticles int
	Warnings    []string
}

// FeedService はフィード登録・管理のサービス層。
// 検証 → フィードURL解決 → 保存 → 即時取り込み のフローを統括する。
type FeedService struct {
	feedRepo repository.FeedRepository
	guard    security.URLGuard
	detector Detector
	ingester Ingester
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
func NewFeedService(
	feedRepo repository.FeedRepository,
	guard security.URLGuard,
	detector Detector,
	ingester Ingester,
) *FeedService {
	return &FeedService{
		feedRepo: feedRepo,
		guard:    guard,
		detector: detector,
		ingester: ingester,
	}
}

// Create はフィードを登録し、すぐに1回取り込む。
func (s *FeedService) Create(ctx context.Context, userID string, input CreateInput) (*CreateResult, error) {
	name := strings.TrimSpace(input.Name)
	rawURL := strings.TrimSpace(input.URL)
	kind := input.Kind
	if kind == "" {
		kind = model.FeedKindSyndication
	}

	if name == "" || rawURL == "" {
		return nil, model.NewValidationError("名前とURLは必須です。")
	}
	if !kind.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なフィード種別です: %s", kind))
	}
	if err := validateScheme(rawURL); err != nil {
		return nil, err
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	feedURL := rawURL
	if kind == model.FeedKindSyndication {
		resolved, err := s.detector.ResolveFeedURL(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if resolved != rawURL {
			if err := s.guard.ValidateURL(resolved); err != nil {
				return nil, model.NewSSRFBlockedError()
			}
			slog.Info("HTMLページからフィードURLを検出しました",
				slog.String("input_url", rawURL),
				slog.String("feed_url", resolved),
			)
		}
		feedURL = resolved
	}

	now := time.Now()
	feed := &model.Feed{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		URL:       feedURL,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	result := &CreateResult{Feed: feed}
	articles, err := s.ingester.Ingest(ctx, feed)
	if err != nil {
		slog.Warn("登録直後の取り込みに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("フィードは登録されましたが、記事の取得に失敗しました: %v", err))
		return result, nil
	}
	result.NewArticles = len(articles)
	return result, nil
}

// List はユーザーのフィード一覧を返す。
func (s *FeedService) List(ctx context.Context, userID string) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// Delete はユーザーのフィードを削除する。記事も同時に削除される。
func (s *FeedService) Delete(ctx context.Context, userID, feedID string) error {
	if _, err := s.findOwned(ctx, userID, feedID); err != nil {
		return err
	}
	if err := s.feedRepo.Delete(ctx, feedID); err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// FetchNow はフィードを即時に取り込み、新規記事数を返す。
func (s *FeedService) FetchNow(ctx context.Context, userID, feedID string) (int, error) {
	feed, err := s.findOwned(ctx, userID, feedID)
	if err != nil {
		return 0, err
	}
	articles, err := s.ingester.Ingest(ctx, feed)
	if err != nil {
		return 0, model.NewFetchFailedError(err.Error())
	}
	return len(articles), nil
}

func (s *FeedService) findOwned(ctx context.Context, userID, feedID string) (*model.Feed, error) {
	feed, err := s.feedRepo.FindByIDAndUser(ctx, feedID, userID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError()
	}
	return feed, nil
}

// validateScheme はURLがhttp/httpsの絶対URLかを確認する。
func validateScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidURLError("http または https のURLを指定してください")
	}
	if u.Host == "" {
		return model.NewInvalidURLError("ホスト名がありません")
	}
	return nil
}
