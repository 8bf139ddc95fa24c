package draft

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// mockDraftRepo はインメモリのDraftRepository。
type mockDraftRepo struct {
	drafts  map[string]*model.Draft
	updates int
}

func newMockDraftRepo() *mockDraftRepo {
	return &mockDraftRepo{drafts: map[string]*model.Draft{}}
}

func (m *mockDraftRepo) FindByID(_ context.Context, id string) (*model.Draft, error) {
	return m.drafts[id], nil
}
func (m *mockDraftRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Draft, error) {
	d, ok := m.drafts[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	return d, nil
}
func (m *mockDraftRepo) ListByUserID(_ context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error) {
	var out []*model.Draft
	for _, d := range m.drafts {
		if d.UserID == userID && (status == "" || d.Status == status) {
			out = append(out, d)
		}
	}
	return out, nil
}
func (m *mockDraftRepo) ListRecentByUser(_ context.Context, _ string, _ int) ([]*model.Draft, error) {
	return nil, nil
}
func (m *mockDraftRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return len(m.drafts), nil
}
func (m *mockDraftRepo) Create(_ context.Context, d *model.Draft) error {
	cp := *d
	m.drafts[d.ID] = &cp
	return nil
}
func (m *mockDraftRepo) Update(_ context.Context, d *model.Draft) error {
	m.updates++
	cp := *d
	m.drafts[d.ID] = &cp
	return nil
}
func (m *mockDraftRepo) Delete(_ context.Context, id string) error {
	delete(m.drafts, id)
	return nil
}

// mockArticleRepo は記事の検索と使用済み更新を記録する。
type mockArticleRepo struct {
	articles   []*model.Article
	owner      map[string]string // article id -> user id
	markedUsed [][]string
}

func (m *mockArticleRepo) ExistsByFeedAndURL(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
func (m *mockArticleRepo) Create(_ context.Context, _ *model.Article) (bool, error) { return true, nil }
func (m *mockArticleRepo) ListByUser(_ context.Context, _ string, _ model.ArticleFilter) ([]*model.ArticleWithFeed, int, error) {
	return nil, 0, nil
}
func (m *mockArticleRepo) ListRecentByUser(_ context.Context, _ string, _ int) ([]*model.ArticleWithFeed, error) {
	return nil, nil
}
func (m *mockArticleRepo) FindByIDsForUser(_ context.Context, userID string, ids []string) ([]*model.Article, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*model.Article
	for _, a := range m.articles {
		if want[a.ID] && m.owner[a.ID] == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (m *mockArticleRepo) MarkUsedInDraft(_ context.Context, ids []string) error {
	m.markedUsed = append(m.markedUsed, ids)
	return nil
}
func (m *mockArticleRepo) CountByUserID(_ context.Context, _ string) (int, error) { return 0, nil }

// mockUserRepo は固定ユーザーを返すUserRepository。
type mockUserRepo struct {
	user *model.User
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) ExistsByEmailOrUsername(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error             { return nil }
func (m *mockUserRepo) UpdateIntegrations(_ context.Context, _ *model.User) error { return nil }
func (m *mockUserRepo) UpdatePassword(_ context.Context, _, _ string) error       { return nil }

type mockComposer struct {
	composeFn func(ctx context.Context, articles []*model.Article) (string, string, error)
}

func (m *mockComposer) Compose(ctx context.Context, articles []*model.Article) (string, string, error) {
	return m.composeFn(ctx, articles)
}

type pushCall struct {
	apiKey, pageID, title, body string
}

type mockWorkspace struct {
	pushFn func(ctx context.Context, apiKey, pageID, title, body string) (string, error)
	pullFn func(ctx context.Context, apiKey, pageID string) (string, string, error)
	pushes []pushCall
}

func (m *mockWorkspace) PushDraft(ctx context.Context, apiKey, pageID, title, body string) (string, error) {
	m.pushes = append(m.pushes, pushCall{apiKey, pageID, title, body})
	if m.pushFn != nil {
		return m.pushFn(ctx, apiKey, pageID, title, body)
	}
	if pageID == "" {
		return "page-new", nil
	}
	return pageID, nil
}
func (m *mockWorkspace) PullDraft(ctx context.Context, apiKey, pageID string) (string, string, error) {
	return m.pullFn(ctx, apiKey, pageID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)
}
