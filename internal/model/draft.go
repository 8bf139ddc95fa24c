package model

import "time"

// DraftStatus は下書きの状態を表す。
// draft → scheduled → published の順にのみ進む（予約取消時のみ scheduled → draft）。
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusScheduled DraftStatus = "scheduled"
	DraftStatusPublished DraftStatus = "published"
)

// Draft は編集中のニュースレター本文を表す。
type Draft struct {
	ID           string
	UserID       string
	Title        string
	Content      string // Markdown
	NotionPageID string
	Status       DraftStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
