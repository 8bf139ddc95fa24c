package handler

import (
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
// 外部連携の認証情報そのものは返さず、設定有無のみを返す。
type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	HasNotion   bool      `json:"has_notion"`
	HasSendGrid bool      `json:"has_sendgrid"`
	HasTelegram bool      `json:"has_telegram"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		HasNotion:   u.HasNotion(),
		HasSendGrid: u.SendGridAPIKey != "",
		HasTelegram: u.HasTelegram(),
		CreatedAt:   u.CreatedAt,
	}
}

type feedResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Kind          string     `json:"kind"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toFeedResponse(f *model.Feed) feedResponse {
	return feedResponse{
		ID:            f.ID,
		Name:          f.Name,
		URL:           f.URL,
		Kind:          string(f.Kind),
		LastFetchedAt: f.LastFetchedAt,
		CreatedAt:     f.CreatedAt,
	}
}

type articleResponse struct {
	ID          string     `json:"id"`
	FeedID      string     `json:"feed_id"`
	FeedName    string     `json:"feed_name"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
	UsedInDraft bool       `json:"used_in_draft"`
}

func toArticleResponse(a *model.ArticleWithFeed) articleResponse {
	return articleResponse{
		ID:          a.ID,
		FeedID:      a.FeedID,
		FeedName:    a.FeedName,
		Title:       a.Title,
		URL:         a.URL,
		Content:     a.Content,
		PublishedAt: a.PublishedAt,
		FetchedAt:   a.FetchedAt,
		UsedInDraft: a.UsedInDraft,
	}
}

type draftResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	NotionPageID string    `json:"notion_page_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDraftResponse(d *model.Draft) draftResponse {
	return draftResponse{
		ID:           d.ID,
		Title:        d.Title,
		Content:      d.Content,
		NotionPageID: d.NotionPageID,
		Status:       string(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type newsletterResponse struct {
	ID             string     `json:"id"`
	DraftID        string     `json:"draft_id"`
	Subject        string     `json:"subject"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	SentAt         *time.Time `json:"sent_at"`
	RecipientCount int        `json:"recipient_count"`
	OpenCount      int        `json:"open_count"`
	ClickCount     int        `json:"click_count"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toNewsletterResponse(n *model.Newsletter) newsletterResponse {
	return newsletterResponse{
		ID:             n.ID,
		DraftID:        n.DraftID,
		Subject:        n.Subject,
		ScheduledFor:   n.ScheduledFor,
		SentAt:         n.SentAt,
		RecipientCount: n.RecipientCount,
		OpenCount:      n.OpenCount,
		ClickCount:     n.ClickCount,
		Status:         string(n.Status),
		ErrorMessage:   n.ErrorMessage,
		CreatedAt:      n.CreatedAt,
	}
}

type subscriberResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toSubscriberResponse(s *model.Subscriber) subscriberResponse {
	return subscriberResponse{
		ID:        s.ID,
		Email:     s.Email,
		Name:      s.Name,
		IsActive:  s.IsActive,
		CreatedAt: s.CreatedAt,
	}
}

// mapSlice はモデルのスライスをレスポンスのスライスに変換する。nilでも空配列を返す。
func mapSlice[M any, R any](items []M, fn func(M) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
