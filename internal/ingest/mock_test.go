package ingest

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// mockFeedRepo はFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	mu          sync.Mutex
	feeds       []*model.Feed
	listErr     error
	lastFetched map[string]time.Time
}

func (m *mockFeedRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Feed, error) {
	for _, f := range m.feeds {
		if f.ID == id && f.UserID == userID {
			return f, nil
		}
	}
	return nil, nil
}
func (m *mockFeedRepo) ListByUserID(_ context.Context, _ string) ([]*model.Feed, error) {
	return m.feeds, nil
}
func (m *mockFeedRepo) ListAll(_ context.Context) ([]*model.Feed, error) {
	return m.feeds, m.listErr
}
func (m *mockFeedRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return len(m.feeds), nil
}
func (m *mockFeedRepo) Create(_ context.Context, _ *model.Feed) error { return nil }
func (m *mockFeedRepo) Delete(_ context.Context, _ string) error      { return nil }
func (m *mockFeedRepo) UpdateLastFetchedAt(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastFetched == nil {
		m.lastFetched = map[string]time.Time{}
	}
	m.lastFetched[id] = t
	return nil
}

// mockArticleRepo は(feed_id, url)で一意性を持つインメモリの記事リポジトリ。
type mockArticleRepo struct {
	mu        sync.Mutex
	articles  []*model.Article
	existsErr error
}

func (m *mockArticleRepo) ExistsByFeedAndURL(_ context.Context, feedID, url string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.FeedID == feedID && a.URL == url {
			return true, nil
		}
	}
	return false, nil
}
func (m *mockArticleRepo) Create(ctx context.Context, article *model.Article) (bool, error) {
	exists, err := m.ExistsByFeedAndURL(ctx, article.FeedID, article.URL)
	if err != nil || exists {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = append(m.articles, article)
	return true, nil
}
func (m *mockArticleRepo) ListByUser(_ context.Context, _ string, _ model.ArticleFilter) ([]*model.ArticleWithFeed, int, error) {
	return nil, 0, nil
}
func (m *mockArticleRepo) ListRecentByUser(_ context.Context, _ string, _ int) ([]*model.ArticleWithFeed, error) {
	return nil, nil
}
func (m *mockArticleRepo) FindByIDsForUser(_ context.Context, _ string, _ []string) ([]*model.Article, error) {
	return nil, nil
}
func (m *mockArticleRepo) MarkUsedInDraft(_ context.Context, _ []string) error { return nil }
func (m *mockArticleRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return len(m.articles), nil
}

// mockGuard はhttptestサーバーへの接続を許可するURLGuard。
type mockGuard struct {
	validateErr error
}

func (g *mockGuard) ValidateURL(_ string) error { return g.validateErr }
func (g *mockGuard) Client() *http.Client     { return &http.Client{Timeout: 5 * time.Second} }
func (g *mockGuard) ReadBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
