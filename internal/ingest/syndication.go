package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsletterman/internal/model"
)

const syndicationAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"

var newID = func() string { return uuid.New().String() }

// ingestSyndication はRSS/Atomフィードのエントリを取り込む。
func (i *Ingester) ingestSyndication(ctx context.Context, feed *model.Feed) ([]*model.Article, error) {
	body, err := i.download(ctx, feed.URL, syndicationAccept)
	if err != nil {
		return nil, err
	}

	parsedFeed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("フィードの解析に失敗しました: %w", err)
	}

	var created []*model.Article
	for _, parsed := range i.convertFeedItems(parsedFeed.Items) {
		exists, err := i.articleRepo.ExistsByFeedAndURL(ctx, feed.ID, parsed.URL)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		article, err := i.store(ctx, feed.ID, parsed)
		if err != nil {
			return created, err
		}
		if article != nil {
			created = append(created, article)
		}
	}
	return created, nil
}

// convertFeedItems はgofeedのエントリを解析済み記事に変換する。
// 本文は content > description の順で最初に存在するものを使い、
// 日時は published > updated の順で採用する。URLのないエントリは除外する。
func (i *Ingester) convertFeedItems(items []*gofeed.Item) []model.ParsedArticle {
	parsed := make([]model.ParsedArticle, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			link = item.GUID
		}
		if link == "" {
			i.logger.Debug("URLのないエントリをスキップしました", slog.String("title", item.Title))
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		p := model.ParsedArticle{
			Title:   strings.TrimSpace(item.Title),
			URL:     link,
			Content: i.sanitizer.PlainText(content),
		}
		if p.Title == "" {
			p.Title = link
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			p.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			p.PublishedAt = &t
		}

		parsed = append(parsed, p)
	}
	return parsed
}
