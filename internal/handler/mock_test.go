package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/newsletterman/internal/article"
	"github.com/hitoshi/newsletterman/internal/auth"
	"github.com/hitoshi/newsletterman/internal/draft"
	"github.com/hitoshi/newsletterman/internal/feed"
	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/newsletter"
	"github.com/hitoshi/newsletterman/internal/user"
)

const (
	testSessionID = "session-1"
	testUserID    = "user-1"
	testCSRFToken = "csrf-token"
	testAPIKey    = "scheduler-secret"
)

var errNotImplemented = errors.New("not implemented")

type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	if id == testSessionID {
		return &model.Session{ID: id, UserID: testUserID}, nil
	}
	return nil, nil
}

type mockHealthChecker struct{ err error }

func (m mockHealthChecker) PingContext(context.Context) error { return m.err }

type mockAuthService struct {
	registerFn func(ctx context.Context, input auth.RegisterInput) (*model.User, *model.Session, error)
	loginFn    func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	logoutFn   func(ctx context.Context, sessionID string) error
	currentFn  func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, input auth.RegisterInput) (*model.User, *model.Session, error) {
	if m.registerFn == nil {
		return nil, nil, errNotImplemented
	}
	return m.registerFn(ctx, input)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if m.loginFn == nil {
		return nil, nil, errNotImplemented
	}
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn == nil {
		return nil
	}
	return m.logoutFn(ctx, sessionID)
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.currentFn == nil {
		return nil, errNotImplemented
	}
	return m.currentFn(ctx, sessionID)
}

type mockFeedService struct {
	createFn   func(ctx context.Context, userID string, input feed.CreateInput) (*feed.CreateResult, error)
	listFn     func(ctx context.Context, userID string) ([]*model.Feed, error)
	deleteFn   func(ctx context.Context, userID, feedID string) error
	fetchNowFn func(ctx context.Context, userID, feedID string) (int, error)
}

func (m *mockFeedService) Create(ctx context.Context, userID string, input feed.CreateInput) (*feed.CreateResult, error) {
	return m.createFn(ctx, userID, input)
}

func (m *mockFeedService) List(ctx context.Context, userID string) ([]*model.Feed, error) {
	return m.listFn(ctx, userID)
}

func (m *mockFeedService) Delete(ctx context.Context, userID, feedID string) error {
	return m.deleteFn(ctx, userID, feedID)
}

func (m *mockFeedService) FetchNow(ctx context.Context, userID, feedID string) (int, error) {
	return m.fetchNowFn(ctx, userID, feedID)
}

type mockArticleService struct {
	listFn func(ctx context.Context, userID string, filter model.ArticleFilter) (*article.ListResult, error)
}

func (m *mockArticleService) List(ctx context.Context, userID string, filter model.ArticleFilter) (*article.ListResult, error) {
	return m.listFn(ctx, userID, filter)
}

type mockDraftService struct {
	listFn     func(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error)
	getFn      func(ctx context.Context, userID, draftID string) (*model.Draft, error)
	createFn   func(ctx context.Context, userID, title, content string) (*draft.Result, error)
	generateFn func(ctx context.Context, userID string, articleIDs []string) (*draft.Result, error)
	updateFn   func(ctx context.Context, userID, draftID, title, content string) (*draft.Result, error)
	syncFn     func(ctx context.Context, userID, draftID string) (*draft.Result, error)
	deleteFn   func(ctx context.Context, userID, draftID string) error
}

func (m *mockDraftService) List(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error) {
	return m.listFn(ctx, userID, status)
}

func (m *mockDraftService) Get(ctx context.Context, userID, draftID string) (*model.Draft, error) {
	return m.getFn(ctx, userID, draftID)
}

func (m *mockDraftService) Create(ctx context.Context, userID, title, content string) (*draft.Result, error) {
	return m.createFn(ctx, userID, title, content)
}

func (m *mockDraftService) Generate(ctx context.Context, userID string, articleIDs []string) (*draft.Result, error) {
	return m.generateFn(ctx, userID, articleIDs)
}

func (m *mockDraftService) Update(ctx context.Context, userID, draftID, title, content string) (*draft.Result, error) {
	return m.updateFn(ctx, userID, draftID, title, content)
}

func (m *mockDraftService) SyncFromWorkspace(ctx context.Context, userID, draftID string) (*draft.Result, error) {
	return m.syncFn(ctx, userID, draftID)
}

func (m *mockDraftService) Delete(ctx context.Context, userID, draftID string) error {
	return m.deleteFn(ctx, userID, draftID)
}

type mockNewsletterService struct {
	scheduleFn func(ctx context.Context, userID string, input newsletter.ScheduleInput) (*model.Newsletter, error)
	listFn     func(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error)
	getFn      func(ctx context.Context, userID, newsletterID string) (*model.Newsletter, error)
	sendNowFn  func(ctx context.Context, userID, newsletterID string) (*newsletter.Outcome, error)
	cancelFn   func(ctx context.Context, userID, newsletterID string) error
}

func (m *mockNewsletterService) Schedule(ctx context.Context, userID string, input newsletter.ScheduleInput) (*model.Newsletter, error) {
	return m.scheduleFn(ctx, userID, input)
}

func (m *mockNewsletterService) List(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error) {
	return m.listFn(ctx, userID, status)
}

func (m *mockNewsletterService) Get(ctx context.Context, userID, newsletterID string) (*model.Newsletter, error) {
	return m.getFn(ctx, userID, newsletterID)
}

func (m *mockNewsletterService) SendNow(ctx context.Context, userID, newsletterID string) (*newsletter.Outcome, error) {
	return m.sendNowFn(ctx, userID, newsletterID)
}

func (m *mockNewsletterService) Cancel(ctx context.Context, userID, newsletterID string) error {
	return m.cancelFn(ctx, userID, newsletterID)
}

type mockScheduleChecker struct {
	runFn func(ctx context.Context) (*newsletter.CheckResult, error)
	calls int
}

func (m *mockScheduleChecker) Run(ctx context.Context) (*newsletter.CheckResult, error) {
	m.calls++
	return m.runFn(ctx)
}

type mockSubscriberService struct {
	addFn    func(ctx context.Context, userID, email, name string) (*model.Subscriber, error)
	listFn   func(ctx context.Context, userID string) ([]*model.Subscriber, error)
	toggleFn func(ctx context.Context, userID, subscriberID string) (*model.Subscriber, error)
	deleteFn func(ctx context.Context, userID, subscriberID string) error
}

func (m *mockSubscriberService) Add(ctx context.Context, userID, email, name string) (*model.Subscriber, error) {
	return m.addFn(ctx, userID, email, name)
}

func (m *mockSubscriberService) List(ctx context.Context, userID string) ([]*model.Subscriber, error) {
	return m.listFn(ctx, userID)
}

func (m *mockSubscriberService) Toggle(ctx context.Context, userID, subscriberID string) (*model.Subscriber, error) {
	return m.toggleFn(ctx, userID, subscriberID)
}

func (m *mockSubscriberService) Delete(ctx context.Context, userID, subscriberID string) error {
	return m.deleteFn(ctx, userID, subscriberID)
}

type mockUserService struct {
	getFn            func(ctx context.Context, userID string) (*model.User, error)
	updateFn         func(ctx context.Context, userID string, settings user.IntegrationSettings) (*model.User, error)
	changePasswordFn func(ctx context.Context, userID string, input user.PasswordChange) error
	dashboardFn      func(ctx context.Context, userID string) (*model.DashboardStats, error)
}

func (m *mockUserService) Get(ctx context.Context, userID string) (*model.User, error) {
	return m.getFn(ctx, userID)
}

func (m *mockUserService) UpdateIntegrations(ctx context.Context, userID string, settings user.IntegrationSettings) (*model.User, error) {
	return m.updateFn(ctx, userID, settings)
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID string, input user.PasswordChange) error {
	return m.changePasswordFn(ctx, userID, input)
}

func (m *mockUserService) Dashboard(ctx context.Context, userID string) (*model.DashboardStats, error) {
	return m.dashboardFn(ctx, userID)
}

// testServer はテスト対象のルーターと差し替え可能なサービス群。
type testServer struct {
	auth        *mockAuthService
	feeds       *mockFeedService
	articles    *mockArticleService
	drafts      *mockDraftService
	newsletters *mockNewsletterService
	checker     *mockScheduleChecker
	subscribers *mockSubscriberService
	users       *mockUserService
	health      mockHealthChecker
}

func newTestServer() *testServer {
	return &testServer{
		auth:        &mockAuthService{},
		feeds:       &mockFeedService{},
		articles:    &mockArticleService{},
		drafts:      &mockDraftService{},
		newsletters: &mockNewsletterService{},
		checker:     &mockScheduleChecker{},
		subscribers: &mockSubscriberService{},
		users:       &mockUserService{},
	}
}

func (s *testServer) router(t *testing.T) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(1000))
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionFinder:     mockSessionFinder{},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		SchedulerAPIKey:   testAPIKey,
		HealthChecker:     s.health,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
		AuthService:       s.auth,
		AuthConfig:        AuthHandlerConfig{SessionMaxAge: 3600},
		FeedService:       s.feeds,
		ArticleService:    s.articles,
		DraftService:      s.drafts,
		NewsletterService: s.newsletters,
		ScheduleChecker:   s.checker,
		SubscriberService: s.subscribers,
		UserService:       s.users,
	})
}

// do はセッションCookieとCSRFトークン付きでリクエストを送る。
func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSessionID})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)

	w := httptest.NewRecorder()
	s.router(t).ServeHTTP(w, req)
	return w
}

// doAnonymous はCookieなしでリクエストを送る。
func (s *testServer) doAnonymous(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.router(t).ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("レスポンスのJSON解析に失敗しました: %v", err)
	}
	return v
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, want, w.Body.String())
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[middleware.ErrorResponseBody](t, w).Code
}
