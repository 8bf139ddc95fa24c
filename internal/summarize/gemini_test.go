package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

type mockGenerator struct {
	generateFn func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

func (m *mockGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return m.generateFn(ctx, parts...)
}

func TestGemini_Summarize(t *testing.T) {
	g := &Gemini{generator: &mockGenerator{
		generateFn: func(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
			if len(parts) != 1 {
				t.Fatalf("parts = %d", len(parts))
			}
			prompt, ok := parts[0].(genai.Text)
			if !ok || !strings.HasSuffix(string(prompt), "article body") {
				t.Errorf("prompt = %v", parts[0])
			}
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{genai.Text("First part. "), genai.Text("Second part.")}}},
					{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
				},
			}, nil
		},
	}}

	summary, err := g.Summarize(context.Background(), "article body")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if summary != "First part. Second part." {
		t.Errorf("summary = %q", summary)
	}
	if g.Name() != "gemini" {
		t.Errorf("Name = %q", g.Name())
	}
}

func TestGemini_EmptyAndError(t *testing.T) {
	empty := &Gemini{generator: &mockGenerator{
		generateFn: func(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{}, nil
		},
	}}
	if _, err := empty.Summarize(context.Background(), "x"); err == nil {
		t.Error("候補なしはエラーになるべき")
	}

	failing := &Gemini{generator: &mockGenerator{
		generateFn: func(_ context.Context, _ ...genai.Part) (*genai.GenerateContentResponse, error) {
			return nil, errors.New("quota exceeded")
		},
	}}
	if _, err := failing.Summarize(context.Background(), "x"); err == nil {
		t.Error("API失敗はエラーになるべき")
	}
	if err := failing.Close(); err != nil {
		t.Errorf("クライアントなしのCloseはnilを返すべき: %v", err)
	}
}
