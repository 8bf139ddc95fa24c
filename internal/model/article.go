package model

import "time"

// Article はフィードから取り込んだ記事を表す。
// URLはフィード内で一意。
type Article struct {
	ID          string
	FeedID      string
	Title       string
	URL         string
	Content     string
	PublishedAt *time.Time
	FetchedAt   time.Time
	UsedInDraft bool
}

// ArticleWithFeed は記事と所属フィード名を結合したモデル。
type ArticleWithFeed struct {
	Article
	FeedName string
}

// ArticleFilter は記事一覧の絞り込み条件を表す。
type ArticleFilter struct {
	FeedID     string
	UnusedOnly bool
	Page       int
	PerPage    int
}

// ParsedArticle はパース直後の未保存の記事データを表す。
type ParsedArticle struct {
	Title       string
	URL         string
	Content     string
	PublishedAt *time.Time
}
