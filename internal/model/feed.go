package model

import "time"

// FeedKind はフィードの取り込み方式を表す。
type FeedKind string

const (
	// FeedKindSyndication はRSS/Atomフィードとして取り込む方式。
	FeedKindSyndication FeedKind = "syndication"
	// FeedKindWebpage は単一Webページを1件の記事として取り込む方式。
	FeedKindWebpage FeedKind = "webpage"
)

// Valid はFeedKindが既知の値かどうかを返す。
func (k FeedKind) Valid() bool {
	return k == FeedKindSyndication || k == FeedKindWebpage
}

// Feed はユーザーが登録したコンテンツ取得元を表す。
type Feed struct {
	ID            string
	UserID        string
	Name          string
	URL           string
	Kind          FeedKind
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
