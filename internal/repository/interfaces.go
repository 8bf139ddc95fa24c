// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// ErrDuplicate は一意制約違反で挿入できなかったことを表す。
var ErrDuplicate = errors.New("一意制約に違反しました")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmailOrUsername はメールアドレスまたはユーザー名が登録済みかを返す。
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)

	// Create はユーザーを作成する。メールアドレスまたはユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateIntegrations は外部連携の認証情報を更新する。
	UpdateIntegrations(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByIDAndUser はユーザーが所有するフィードを取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Feed, error)

	// ListByUserID はユーザーのフィード一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error)

	// ListAll は全ユーザーのフィードを返す（ワーカーの定期取り込み用）。
	ListAll(ctx context.Context) ([]*model.Feed, error)

	// CountByUserID はユーザーのフィード数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.Feed) error

	// Delete はフィードを削除する。記事はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// UpdateLastFetchedAt は最終取得日時を更新する。
	UpdateLastFetchedAt(ctx context.Context, id string, fetchedAt time.Time) error
}

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// ExistsByFeedAndURL はフィード内に同一URLの記事が存在するかを返す。
	ExistsByFeedAndURL(ctx context.Context, feedID, url string) (bool, error)

	// Create は記事を作成する。(feed_id, url) が重複する場合は挿入せずfalseを返す。
	Create(ctx context.Context, article *model.Article) (bool, error)

	// ListByUser はユーザーの記事をフィルタ条件で取得し、総件数とともに返す。
	ListByUser(ctx context.Context, userID string, filter model.ArticleFilter) ([]*model.ArticleWithFeed, int, error)

	// ListRecentByUser はユーザーの最新記事を取得日時の降順で返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.ArticleWithFeed, error)

	// FindByIDsForUser はユーザーが所有するフィードの記事のみをID指定で返す。
	FindByIDsForUser(ctx context.Context, userID string, ids []string) ([]*model.Article, error)

	// MarkUsedInDraft は記事を下書き使用済みにする。
	MarkUsedInDraft(ctx context.Context, ids []string) error

	// CountByUserID はユーザーの記事数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// DraftRepository は下書きデータの永続化インターフェース。
type DraftRepository interface {
	// FindByID は指定IDの下書きを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Draft, error)

	// FindByIDAndUser はユーザーが所有する下書きを取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Draft, error)

	// ListByUserID はユーザーの下書きを更新日時の降順で返す。statusが空の場合は全件。
	ListByUserID(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error)

	// ListRecentByUser はユーザーの最近更新された下書きを返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Draft, error)

	// CountByUserID はユーザーの下書き数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Create は下書きを作成する。
	Create(ctx context.Context, draft *model.Draft) error

	// Update はタイトル・本文・Notionページ・更新日時を更新する。
	Update(ctx context.Context, draft *model.Draft) error

	// Delete は下書きを削除する。
	Delete(ctx context.Context, id string) error
}

// NewsletterRepository はニュースレターデータの永続化と状態遷移のインターフェース。
type NewsletterRepository interface {
	// FindByID は指定IDのニュースレターを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Newsletter, error)

	// FindByIDAndUser はユーザーが所有するニュースレターを取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Newsletter, error)

	// ListByUserID はユーザーのニュースレターを作成日時の降順で返す。statusが空の場合は全件。
	ListByUserID(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error)

	// ListRecentByUser はユーザーの最近作成されたニュースレターを返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Newsletter, error)

	// ListUpcomingByUser はnow以降に予約されているニュースレターを予約日時の昇順で返す。
	ListUpcomingByUser(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Newsletter, error)

	// ListDue は scheduled かつ scheduled_for <= now のニュースレターを予約日時の昇順で返す。
	ListDue(ctx context.Context, now time.Time) ([]*model.Newsletter, error)

	// CountByUserID はユーザーのニュースレター数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// SumSentStats は送信済みニュースレターの受信者数・開封数・クリック数の合計を返す。
	SumSentStats(ctx context.Context, userID string) (recipients, opens, clicks int, err error)

	// CreateScheduled はニュースレターを作成し、下書きを draft から scheduled にする（同一トランザクション）。
	// 下書きが draft 状態でなかった場合は何も作成せずfalseを返す。
	CreateScheduled(ctx context.Context, newsletter *model.Newsletter) (bool, error)

	// CancelScheduled は scheduled のニュースレターを削除し、下書きを draft に戻す（同一トランザクション）。
	// 対象が scheduled でなかった場合はfalseを返す。
	CancelScheduled(ctx context.Context, id string) (bool, error)

	// TransitionStatus は現在の状態がfromのいずれかである場合に限りtoへ更新する。
	// 条件付きUPDATEで実行し、更新できた場合にtrueを返す。
	TransitionStatus(ctx context.Context, id string, from []model.NewsletterStatus, to model.NewsletterStatus) (bool, error)

	// MarkSent は sending のニュースレターを sent にし、下書きを published にする（同一トランザクション）。
	MarkSent(ctx context.Context, id string, sentAt time.Time, recipientCount int) error

	// MarkFailed は sending 確定後の配信失敗として failed にし、理由を保存する。
	MarkFailed(ctx context.Context, id string, reason string) error

	// MarkFailedFrom は現在の状態がfromのいずれかである場合に限り failed にする。
	// 条件付きUPDATEで実行し、更新できた場合にtrueを返す。
	MarkFailedFrom(ctx context.Context, id string, from []model.NewsletterStatus, reason string) (bool, error)
}

// SubscriberRepository は購読者データの永続化インターフェース。
type SubscriberRepository interface {
	// FindByIDAndUser はユーザーが所有する購読者を取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Subscriber, error)

	// FindByUserAndEmail はユーザー内でメールアドレスが一致する購読者を取得する。見つからない場合はnilを返す。
	FindByUserAndEmail(ctx context.Context, userID, email string) (*model.Subscriber, error)

	// ListByUserID はユーザーの購読者を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Subscriber, error)

	// ListActiveByUserID はユーザーの有効な購読者を返す。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.Subscriber, error)

	// Create は購読者を作成する。(user_id, email) が重複する場合は挿入せずfalseを返す。
	Create(ctx context.Context, subscriber *model.Subscriber) (bool, error)

	// SetActive は購読者の有効フラグを更新する。
	SetActive(ctx context.Context, id string, active bool) error

	// Delete は購読者を削除する。
	Delete(ctx context.Context, id string) error
}
