package compose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/newsletterman/internal/model"
)

type mockSummarizer struct {
	summarizeFn func(ctx context.Context, text string) (string, error)
	inputs      []string
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.inputs = append(m.inputs, text)
	return m.summarizeFn(ctx, text)
}

func (m *mockSummarizer) Name() string { return "mock" }

type recordedSummarize struct {
	provider string
	result   string
}

type mockRecorder struct {
	summarize []recordedSummarize
}

func (m *mockRecorder) RecordIngest(string, string, time.Duration, int) {}
func (m *mockRecorder) RecordDispatch(string, int)                      {}
func (m *mockRecorder) RecordSummarize(provider, result string) {
	m.summarize = append(m.summarize, recordedSummarize{provider, result})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name   string
		titles []string
		want   string
	}{
		{
			"two long titles",
			[]string{"Big News Today", "Another Story Here"},
			"Newsletter: Big News Today and Another Story Here",
		},
		{
			"words beyond three are dropped",
			[]string{"Go 1.22 Released With Loops", "Short"},
			"Newsletter: Go 1.22 Released and Short",
		},
		{
			"three titles use commas",
			[]string{"A", "B b", "C c c c"},
			"Newsletter: A, B b and C c c",
		},
		{
			"at most five titles",
			[]string{"1", "2", "3", "4", "5", "6"},
			"Newsletter: 1, 2, 3, 4 and 5",
		},
		{
			"blank titles fall back",
			[]string{"", "   "},
			"Weekly Newsletter",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildTitle(tt.titles); got != tt.want {
				t.Errorf("BuildTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose_SingleArticleUsesTitleVerbatim(t *testing.T) {
	s := &mockSummarizer{summarizeFn: func(_ context.Context, _ string) (string, error) {
		return " A summary. ", nil
	}}
	c := NewComposer(s, &mockRecorder{}, testLogger())

	title, body, err := c.Compose(context.Background(), []*model.Article{
		{ID: "a1", Title: "Only One", URL: "https://x/a", Content: "body"},
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if title != "Only One" {
		t.Errorf("title = %q", title)
	}
	want := "# Only One\n\n## Only One\n\nA summary.\n\nRead more: https://x/a"
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if want := "Title: Only One\nSource: https://x/a\n\nContent: body"; s.inputs[0] != want {
		t.Errorf("summarizer input = %q", s.inputs[0])
	}
}

func TestCompose_SummaryFailureFallsBackToLink(t *testing.T) {
	s := &mockSummarizer{summarizeFn: func(_ context.Context, text string) (string, error) {
		if strings.Contains(text, "Second") {
			return "", errors.New("rate limited")
		}
		return "Summary one.", nil
	}}
	rec := &mockRecorder{}
	c := NewComposer(s, rec, testLogger())

	title, body, err := c.Compose(context.Background(), []*model.Article{
		{ID: "a1", Title: "First Story Here", URL: "https://x/1"},
		{ID: "a2", Title: "Second Story Here", URL: "https://x/2"},
	})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if title != "Newsletter: First Story Here and Second Story Here" {
		t.Errorf("title = %q", title)
	}
	want := "# Newsletter: First Story Here and Second Story Here\n\n" +
		"## First Story Here\n\nSummary one.\n\nRead more: https://x/1\n\n" +
		"## Second Story Here\n\nRead more: https://x/2"
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	wantRec := []recordedSummarize{{"mock", "ok"}, {"mock", "failed"}}
	if diff := cmp.Diff(wantRec, rec.summarize, cmp.AllowUnexported(recordedSummarize{})); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestCompose_NilSummarizer(t *testing.T) {
	c := NewComposer(nil, &mockRecorder{}, testLogger())

	_, body, err := c.Compose(context.Background(), []*model.Article{{Title: "T", URL: "u"}})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if body != "# T\n\n## T\n\nRead more: u" {
		t.Errorf("body = %q", body)
	}
}

func TestCompose_ContentTruncated(t *testing.T) {
	s := &mockSummarizer{summarizeFn: func(_ context.Context, _ string) (string, error) { return "s", nil }}
	c := NewComposer(s, &mockRecorder{}, testLogger())

	_, _, err := c.Compose(context.Background(), []*model.Article{{Title: "T", URL: "u", Content: strings.Repeat("あ", 1500)}})
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	content := strings.SplitN(s.inputs[0], "Content: ", 2)[1]
	if n := len([]rune(content)); n != maxContentChars {
		t.Errorf("本文は %d 文字に切り詰められるべき: %d", maxContentChars, n)
	}
}

func TestCompose_Empty(t *testing.T) {
	c := NewComposer(nil, &mockRecorder{}, testLogger())
	_, _, err := c.Compose(context.Background(), nil)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNoArticles {
		t.Errorf("NO_ARTICLESを期待しましたが: %v", err)
	}
}
