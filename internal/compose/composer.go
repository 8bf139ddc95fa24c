// Package compose は記事群からニュースレター下書きのタイトルと本文を組み立てる。
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/summarize"
)

const (
	// maxContentChars は要約に渡す本文の最大文字数。
	maxContentChars = 1000
	// maxTitleTopics はタイトル生成に使う記事の最大件数。
	maxTitleTopics = 5
	// fallbackTitle はタイトルを組み立てられなかった場合のタイトル。
	fallbackTitle = "Weekly Newsletter"
)

// Composer は記事ごとの要約セクションを並べたMarkdown本文を生成する。
type Composer struct {
	summarizer summarize.Summarizer
	recorder   metrics.Recorder
	logger     *slog.Logger
}

// NewComposer はComposerを生成する。summarizerがnilの場合は要約なしでセクションを作る。
func NewComposer(summarizer summarize.Summarizer, recorder metrics.Recorder, logger *slog.Logger) *Composer {
	return &Composer{
		summarizer: summarizer,
		recorder:   recorder,
		logger:     logger,
	}
}

// Compose は記事の並び順どおりにセクションを作り、(タイトル, 本文) を返す。
// 要約に失敗した記事はタイトルとリンクのみのセクションになる。
func (c *Composer) Compose(ctx context.Context, articles []*model.Article) (string, string, error) {
	if len(articles) == 0 {
		return "", "", model.NewNoArticlesError()
	}

	titles := make([]string, 0, len(articles))
	sections := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, a.Title)
		sections = append(sections, formatSection(a, c.summarize(ctx, a)))
	}

	title := titles[0]
	if len(titles) > 1 {
		title = BuildTitle(titles)
	}

	body := "# " + title + "\n\n" + strings.Join(sections, "\n\n")
	return title, body, nil
}

// summarize は記事1件の要約を返す。失敗時は空文字を返す。
func (c *Composer) summarize(ctx context.Context, a *model.Article) string {
	if c.summarizer == nil {
		return ""
	}

	summary, err := c.summarizer.Summarize(ctx, articleText(a))
	if err != nil {
		c.recorder.RecordSummarize(c.summarizer.Name(), metrics.ResultFailed)
		c.logger.Warn("記事の要約に失敗しました",
			slog.String("article_id", a.ID),
			slog.String("provider", c.summarizer.Name()),
			slog.String("error", err.Error()),
		)
		return ""
	}
	c.recorder.RecordSummarize(c.summarizer.Name(), metrics.ResultOK)
	return strings.TrimSpace(summary)
}

// articleText は要約の入力テキストを作る。本文は先頭 maxContentChars 文字まで。
func articleText(a *model.Article) string {
	content := a.Content
	if r := []rune(content); len(r) > maxContentChars {
		content = string(r[:maxContentChars])
	}
	return fmt.Sprintf("Title: %s\nSource: %s\n\nContent: %s", a.Title, a.URL, content)
}

func formatSection(a *model.Article, summary string) string {
	if summary == "" {
		return fmt.Sprintf("## %s\n\nRead more: %s", a.Title, a.URL)
	}
	return fmt.Sprintf("## %s\n\n%s\n\nRead more: %s", a.Title, summary, a.URL)
}

// BuildTitle は複数記事のタイトルからニュースレターのタイトルを作る。
// 先頭 maxTitleTopics 件について、3語を超えるタイトルは先頭3語に縮め、
// "Newsletter: A, B and C" の形に連結する。
func BuildTitle(titles []string) string {
	if len(titles) > maxTitleTopics {
		titles = titles[:maxTitleTopics]
	}

	topics := make([]string, 0, len(titles))
	for _, t := range titles {
		words := strings.Fields(t)
		switch {
		case len(words) > 2:
			topics = append(topics, strings.Join(words[:3], " "))
		case len(words) > 0:
			topics = append(topics, strings.TrimSpace(t))
		}
	}

	switch len(topics) {
	case 0:
		return fallbackTitle
	case 1:
		return "Newsletter: " + topics[0]
	default:
		last := len(topics) - 1
		return "Newsletter: " + strings.Join(topics[:last], ", ") + " and " + topics[last]
	}
}
