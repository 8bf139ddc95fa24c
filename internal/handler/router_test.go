package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/newsletterman/internal/middleware"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/newsletter"
)

func TestRouter_Health(t *testing.T) {
	s := newTestServer()
	w := s.doAnonymous(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	requireStatus(t, w, http.StatusOK)

	s.health = mockHealthChecker{err: errors.New("connection refused")}
	w = s.doAnonymous(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	requireStatus(t, w, http.StatusServiceUnavailable)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer()
	w := s.doAnonymous(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	requireStatus(t, w, http.StatusOK)
	if w.Body.String() != "# metrics" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRouter_RequiresSession(t *testing.T) {
	s := newTestServer()
	paths := []string{"/api/feeds", "/api/articles", "/api/drafts", "/api/newsletters", "/api/subscribers", "/api/settings", "/api/dashboard", "/api/auth/me"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			w := s.doAnonymous(t, httptest.NewRequest(http.MethodGet, path, nil))
			requireStatus(t, w, http.StatusUnauthorized)
			if code := errorCode(t, w); code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q", code)
			}
		})
	}
}

func TestRouter_MutationRequiresCSRF(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodDelete, "/api/subscribers/sub-1", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSessionID})

	w := s.doAnonymous(t, req)
	requireStatus(t, w, http.StatusForbidden)
	if code := errorCode(t, w); code != model.ErrCodeCSRF {
		t.Errorf("code = %q", code)
	}
}

func TestRouter_CheckScheduled(t *testing.T) {
	s := newTestServer()
	s.checker.runFn = func(_ context.Context) (*newsletter.CheckResult, error) {
		return &newsletter.CheckResult{
			Processed: 2,
			Results: []newsletter.ItemResult{
				{ID: "nl-1", Result: "sent", Recipients: 3},
				{ID: "nl-2", Result: "failed", Reason: "No active subscribers"},
			},
		}, nil
	}

	t.Run("APIキーなしは401", func(t *testing.T) {
		w := s.doAnonymous(t, httptest.NewRequest(http.MethodPost, "/api/check-scheduled", nil))
		requireStatus(t, w, http.StatusUnauthorized)
		if s.checker.calls != 0 {
			t.Error("認証前にチェックが実行されました")
		}
	})

	t.Run("APIキーありは結果を返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/check-scheduled", nil)
		req.Header.Set(middleware.APIKeyHeader, testAPIKey)
		w := s.doAnonymous(t, req)
		requireStatus(t, w, http.StatusOK)

		body := decodeBody[map[string]any](t, w)
		if body["processed"] != float64(2) {
			t.Errorf("processed = %v", body["processed"])
		}
		results := body["results"].([]any)
		second := results[1].(map[string]any)
		if second["result"] != "failed" || second["reason"] != "No active subscribers" {
			t.Errorf("results[1] = %v", second)
		}
		if _, ok := second["recipients"]; ok {
			t.Error("失敗時はrecipientsを省略する")
		}
	})
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	s := newTestServer()
	w := s.doAnonymous(t, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	requireStatus(t, w, http.StatusOK)
	if decodeBody[map[string]string](t, w)["token"] == "" {
		t.Error("トークンが空です")
	}
}
