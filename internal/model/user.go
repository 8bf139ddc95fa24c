// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部連携の認証情報はユーザーごとに任意で保持する。
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	NotionAPIKey     string
	SendGridAPIKey   string
	TelegramBotToken string
	TelegramChatID   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasNotion はNotion連携が設定されているかを返す。
func (u *User) HasNotion() bool {
	return u.NotionAPIKey != ""
}

// HasTelegram はTelegram通知が設定されているかを返す。
func (u *User) HasTelegram() bool {
	return u.TelegramBotToken != "" && u.TelegramChatID != ""
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// DashboardStats はダッシュボード表示用の集計値。
type DashboardStats struct {
	FeedCount           int
	ArticleCount        int
	DraftCount          int
	NewsletterCount     int
	RecentArticles      []*ArticleWithFeed
	RecentDrafts        []*Draft
	RecentNewsletters   []*Newsletter
	UpcomingNewsletters []*Newsletter
	TotalRecipients     int
	OpenRate            float64
	ClickRate           float64
}
