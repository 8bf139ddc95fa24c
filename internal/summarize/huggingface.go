package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	huggingFaceBaseURL = "https://api-inference.huggingface.co/models/"

	// huggingFaceMaxInput はモデルに渡す入力の最大文字数。
	huggingFaceMaxInput = 1024
)

// HuggingFace はHugging Face Inference APIの要約モデルを呼び出す。
type HuggingFace struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

var _ Summarizer = (*HuggingFace)(nil)

// NewHuggingFace はHuggingFaceを生成する。
func NewHuggingFace(httpClient *http.Client, apiKey, model string, logger *slog.Logger) *HuggingFace {
	return &HuggingFace{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   huggingFaceBaseURL + model,
	}
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type huggingFaceSummary struct {
	SummaryText string `json:"summary_text"`
	Error       string `json:"error"`
}

// Name は要約方式名を返す。
func (h *HuggingFace) Name() string { return "huggingface" }

// Summarize はテキストを要約する。
// レスポンスは配列形式とオブジェクト形式の両方を受け付ける。
func (h *HuggingFace) Summarize(ctx context.Context, text string) (string, error) {
	if len(text) > huggingFaceMaxInput {
		text = truncateRunes(text, huggingFaceMaxInput)
	}

	payload, err := json.Marshal(huggingFaceRequest{
		Inputs: text,
		Parameters: huggingFaceParameters{
			MaxLength: 150,
			MinLength: 30,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Hugging Face APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		h.logger.Warn("Hugging Face APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", truncateRunes(string(body), 200)),
		)
		return "", fmt.Errorf("Hugging Face APIがステータス %d を返しました", resp.StatusCode)
	}

	summary, err := parseHuggingFaceResponse(body)
	if err != nil {
		return "", err
	}
	return summary, nil
}

func parseHuggingFaceResponse(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)

	var single huggingFaceSummary
	if bytes.HasPrefix(trimmed, []byte("[")) {
		var list []huggingFaceSummary
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
		if len(list) == 0 {
			return "", errors.New("要約結果が空です")
		}
		single = list[0]
	} else if err := json.Unmarshal(trimmed, &single); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if single.Error != "" {
		return "", fmt.Errorf("Hugging Face APIエラー: %s", single.Error)
	}
	summary := strings.TrimSpace(single.SummaryText)
	if summary == "" {
		return "", errors.New("要約結果が空です")
	}
	return summary, nil
}

// truncateRunes は文字列を先頭からmax文字（rune単位）に切り詰める。
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
