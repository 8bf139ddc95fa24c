// Package summarize は記事本文の要約機能を提供する。
//
// 要約方式は起動時に1つだけ選択され、Summarizer インターフェースで利用する。
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/newsletterman/internal/config"
)

// Summarizer は本文テキストを短い要約に変換する。
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	// Name はメトリクスのラベルに使う要約方式名。
	Name() string
}

// New は設定に従ってSummarizerを生成する。
// Gemini を選んだ場合は返り値が io.Closer を実装するため、呼び出し元で閉じること。
func New(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (Summarizer, error) {
	switch provider := cfg.ResolveSummarizer(); provider {
	case config.SummarizerHuggingFace:
		if cfg.HuggingFaceAPIKey == "" {
			return nil, fmt.Errorf("HUGGINGFACE_API_KEY が設定されていません")
		}
		return NewHuggingFace(httpClient, cfg.HuggingFaceAPIKey, cfg.HuggingFaceModel, logger), nil
	case config.SummarizerGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY が設定されていません")
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.SummarizerLocal:
		return NewLocal(), nil
	default:
		return nil, fmt.Errorf("未対応の要約方式です: %s", provider)
	}
}
