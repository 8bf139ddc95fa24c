package model

import "time"

// NewsletterStatus はニュースレター配信ジョブの状態を表す。
type NewsletterStatus string

const (
	NewsletterStatusScheduled NewsletterStatus = "scheduled"
	NewsletterStatusSending   NewsletterStatus = "sending"
	NewsletterStatusSent      NewsletterStatus = "sent"
	NewsletterStatusFailed    NewsletterStatus = "failed"
)

// Sendable は配信を開始できる状態かどうかを返す。
func (s NewsletterStatus) Sendable() bool {
	return s == NewsletterStatusScheduled || s == NewsletterStatusFailed
}

// Valid はNewsletterStatusが既知の値かどうかを返す。
func (s NewsletterStatus) Valid() bool {
	switch s {
	case NewsletterStatusScheduled, NewsletterStatusSending, NewsletterStatusSent, NewsletterStatusFailed:
		return true
	}
	return false
}

// Newsletter は予約・配信されるニュースレターを表す。
// 必ず1つの下書きと1人の所有ユーザーを参照する。
type Newsletter struct {
	ID             string
	UserID         string
	DraftID        string
	Subject        string
	ScheduledFor   time.Time
	SentAt         *time.Time
	RecipientCount int
	OpenCount      int
	ClickCount     int
	Status         NewsletterStatus
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
