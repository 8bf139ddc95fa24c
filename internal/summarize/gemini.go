package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiPrompt = "Summarize the following article in two or three sentences. " +
	"Reply with the summary only, in the language of the article.\n\n"

// contentGenerator は *genai.GenerativeModel のうち要約に使う部分。
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini はGoogle Gemini APIで要約を生成する。
type Gemini struct {
	client    *genai.Client
	generator contentGenerator
}

var _ Summarizer = (*Gemini)(nil)

// NewGemini はGeminiクライアントを生成する。使い終わったらCloseを呼ぶこと。
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの生成に失敗しました: %w", err)
	}
	m := client.GenerativeModel(model)
	m.SetTemperature(0.2)
	return &Gemini{client: client, generator: m}, nil
}

// Name は要約方式名を返す。
func (g *Gemini) Name() string { return "gemini" }

// Summarize はテキストを要約する。
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := g.generator.GenerateContent(ctx, genai.Text(geminiPrompt+text))
	if err != nil {
		return "", fmt.Errorf("Gemini APIの呼び出しに失敗しました: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// 先頭の候補のみ使う
		break
	}

	summary := strings.TrimSpace(b.String())
	if summary == "" {
		return "", errors.New("要約結果が空です")
	}
	return summary, nil
}

// Close はGeminiクライアントを閉じる。
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
