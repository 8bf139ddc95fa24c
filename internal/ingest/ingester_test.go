package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/security"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Tech</title>
  <link>https://example.com</link>
  <item>
    <title>A</title>
    <link>https://x/a</link>
    <description>hi</description>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <entry>
    <title>Full Entry</title>
    <link href="https://example.com/full"/>
    <id>urn:uuid:1</id>
    <updated>2026-03-02T10:00:00Z</updated>
    <summary>short summary</summary>
    <content type="html">&lt;p&gt;full &lt;b&gt;content&lt;/b&gt;&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Summary Only</title>
    <link href="https://example.com/summary"/>
    <id>urn:uuid:2</id>
    <published>2026-03-01T09:00:00Z</published>
    <updated>2026-03-03T09:00:00Z</updated>
    <summary>only summary</summary>
  </entry>
</feed>`

func newTestIngester(feedRepo *mockFeedRepo, articleRepo *mockArticleRepo, guard security.URLGuard) *Ingester {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngester(feedRepo, articleRepo, guard, security.NewContentSanitizer(), metrics.Nop{}, logger)
}

func serve(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header should be set")
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestIngest_Syndication_IdempotentByURL(t *testing.T) {
	ts := serve(t, http.StatusOK, "application/rss+xml", sampleRSS)
	feedRepo := &mockFeedRepo{}
	articleRepo := &mockArticleRepo{}
	ing := newTestIngester(feedRepo, articleRepo, &mockGuard{})

	feed := &model.Feed{ID: "feed-1", Name: "Tech", URL: ts.URL, Kind: model.FeedKindSyndication}

	articles, err := ing.Ingest(context.Background(), feed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("len(articles) = %d, want 1", len(articles))
	}
	a := articles[0]
	if a.Title != "A" || a.URL != "https://x/a" || a.Content != "hi" {
		t.Errorf("unexpected article: title=%q url=%q content=%q", a.Title, a.URL, a.Content)
	}
	if a.UsedInDraft {
		t.Error("new article should not be marked used")
	}
	if _, ok := feedRepo.lastFetched["feed-1"]; !ok {
		t.Error("last_fetched_at should be updated after a successful ingestion")
	}

	again, err := ing.Ingest(context.Background(), feed)
	if err != nil {
		t.Fatalf("unexpected error on second ingestion: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second ingestion should yield no new articles, got %d", len(again))
	}
	if len(articleRepo.articles) != 1 {
		t.Errorf("stored articles = %d, want 1", len(articleRepo.articles))
	}
}

func TestIngest_Syndication_ContentAndDatePreference(t *testing.T) {
	ts := serve(t, http.StatusOK, "application/atom+xml", sampleAtom)
	ing := newTestIngester(&mockFeedRepo{}, &mockArticleRepo{}, &mockGuard{})

	articles, err := ing.Ingest(context.Background(), &model.Feed{ID: "feed-1", URL: ts.URL, Kind: model.FeedKindSyndication})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	full, summaryOnly := articles[0], articles[1]
	if full.Content != "full content" {
		t.Errorf("content should be preferred over summary, got %q", full.Content)
	}
	if full.PublishedAt == nil || !full.PublishedAt.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt should fall back to updated time, got %v", full.PublishedAt)
	}
	if summaryOnly.Content != "only summary" {
		t.Errorf("summary should be used when content is absent, got %q", summaryOnly.Content)
	}
	if summaryOnly.PublishedAt == nil || !summaryOnly.PublishedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("PublishedAt should prefer published time, got %v", summaryOnly.PublishedAt)
	}
}

func TestIngest_Syndication_FailuresAreReturned(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "HTTPエラー", status: http.StatusInternalServerError, body: "oops"},
		{name: "解析エラー", status: http.StatusOK, body: "this is not a feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := serve(t, tt.status, "text/plain", tt.body)
			feedRepo := &mockFeedRepo{}
			ing := newTestIngester(feedRepo, &mockArticleRepo{}, &mockGuard{})

			_, err := ing.Ingest(context.Background(), &model.Feed{ID: "feed-1", URL: ts.URL, Kind: model.FeedKindSyndication})
			if err == nil {
				t.Fatal("expected ingestion error, got nil")
			}
			if _, ok := feedRepo.lastFetched["feed-1"]; ok {
				t.Error("last_fetched_at should not be updated on failure")
			}
		})
	}
}

func TestIngest_BlockedURL(t *testing.T) {
	ing := newTestIngester(&mockFeedRepo{}, &mockArticleRepo{}, &mockGuard{validateErr: errors.New("blocked IP address")})

	_, err := ing.Ingest(context.Background(), &model.Feed{ID: "feed-1", URL: "http://10.0.0.1/feed", Kind: model.FeedKindSyndication})
	if err == nil || !strings.Contains(err.Error(), "blocked IP address") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestIngest_UnknownKind(t *testing.T) {
	ing := newTestIngester(&mockFeedRepo{}, &mockArticleRepo{}, &mockGuard{})

	if _, err := ing.Ingest(context.Background(), &model.Feed{ID: "feed-1", Kind: "podcast"}); err == nil {
		t.Fatal("expected error for unknown feed kind")
	}
}
