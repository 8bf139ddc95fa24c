package ingest

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/hitoshi/newsletterman/internal/model"
)

const webpageAccept = "text/html, application/xhtml+xml, */*"

// ingestWebpage はページ全体を1件の記事として取り込む。
// フィードURLの記事が既にあれば再取得しない。
// ダウンロード失敗や本文抽出が空の場合はエラーではなく0件として扱う。
func (i *Ingester) ingestWebpage(ctx context.Context, feed *model.Feed) ([]*model.Article, error) {
	exists, err := i.articleRepo.ExistsByFeedAndURL(ctx, feed.ID, feed.URL)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	body, err := i.download(ctx, feed.URL, webpageAccept)
	if err != nil {
		i.logger.Warn("Webページの取得に失敗したため取り込みをスキップします",
			slog.String("feed_id", feed.ID),
			slog.String("url", feed.URL),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	text := extractText(body, feed.URL)
	if text == "" {
		i.logger.Warn("Webページから本文を抽出できませんでした",
			slog.String("feed_id", feed.ID),
			slog.String("url", feed.URL),
		)
		return nil, nil
	}

	title := extractTitle(body)
	if title == "" {
		title = feed.Name
	}

	now := i.now()
	article, err := i.store(ctx, feed.ID, model.ParsedArticle{
		Title:       title,
		URL:         feed.URL,
		Content:     text,
		PublishedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, nil
	}
	return []*model.Article{article}, nil
}

// extractText はreadabilityでページの主要本文をテキストとして取り出す。
func extractText(body []byte, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// extractTitle は<title>要素のテキストを返す。
func extractTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("head title").First().Text())
}
