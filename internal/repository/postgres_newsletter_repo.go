package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/lib/pq"
)

// PostgresNewsletterRepo はPostgreSQLを使用したニュースレターリポジトリ。
// 状態遷移は条件付きUPDATEで行い、同時実行時の二重送信を防ぐ。
type PostgresNewsletterRepo struct {
	db *sql.DB
}

// NewPostgresNewsletterRepo はPostgresNewsletterRepoを生成する。
func NewPostgresNewsletterRepo(db *sql.DB) *PostgresNewsletterRepo {
	return &PostgresNewsletterRepo{db: db}
}

const newsletterColumns = `id, user_id, draft_id, subject, scheduled_for, sent_at,
		        recipient_count, open_count, click_count, status, error_message,
		        created_at, updated_at`

func scanNewsletter(row interface{ Scan(...any) error }) (*model.Newsletter, error) {
	n := &model.Newsletter{}
	var sentAt sql.NullTime
	var errorMessage sql.NullString
	if err := row.Scan(
		&n.ID, &n.UserID, &n.DraftID, &n.Subject, &n.ScheduledFor, &sentAt,
		&n.RecipientCount, &n.OpenCount, &n.ClickCount, &n.Status, &errorMessage,
		&n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.SentAt = nullTime(sentAt)
	n.ErrorMessage = nullStringValue(errorMessage)
	return n, nil
}

// FindByID は指定IDのニュースレターを取得する。見つからない場合はnilを返す。
func (r *PostgresNewsletterRepo) FindByID(ctx context.Context, id string) (*model.Newsletter, error) {
	n, err := scanNewsletter(r.db.QueryRowContext(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ニュースレターの取得に失敗しました: %w", err)
	}
	return n, nil
}

// FindByIDAndUser はユーザーが所有するニュースレターを取得する。見つからない場合はnilを返す。
func (r *PostgresNewsletterRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Newsletter, error) {
	n, err := scanNewsletter(r.db.QueryRowContext(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ニュースレターの取得に失敗しました: %w", err)
	}
	return n, nil
}

// ListByUserID はユーザーのニュースレターを作成日時の降順で返す。statusが空の場合は全件。
func (r *PostgresNewsletterRepo) ListByUserID(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error) {
	if status == "" {
		return r.list(ctx,
			`SELECT `+newsletterColumns+` FROM newsletters WHERE user_id = $1 ORDER BY created_at DESC`,
			userID)
	}
	return r.list(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`,
		userID, status)
}

// ListRecentByUser はユーザーの最近作成されたニュースレターを返す。
func (r *PostgresNewsletterRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Newsletter, error) {
	return r.list(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
}

// ListUpcomingByUser はnow以降に予約されているニュースレターを予約日時の昇順で返す。
func (r *PostgresNewsletterRepo) ListUpcomingByUser(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Newsletter, error) {
	return r.list(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters
		 WHERE user_id = $1 AND status = 'scheduled' AND scheduled_for > $2
		 ORDER BY scheduled_for ASC LIMIT $3`,
		userID, now, limit)
}

// ListDue は scheduled かつ scheduled_for <= now のニュースレターを予約日時の昇順で返す。
func (r *PostgresNewsletterRepo) ListDue(ctx context.Context, now time.Time) ([]*model.Newsletter, error) {
	return r.list(ctx,
		`SELECT `+newsletterColumns+` FROM newsletters
		 WHERE status = 'scheduled' AND scheduled_for <= $1
		 ORDER BY scheduled_for ASC`,
		now)
}

func (r *PostgresNewsletterRepo) list(ctx context.Context, query string, args ...any) ([]*model.Newsletter, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ニュースレター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var newsletters []*model.Newsletter
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, fmt.Errorf("ニュースレターのスキャンに失敗しました: %w", err)
		}
		newsletters = append(newsletters, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ニュースレター一覧の読み取りに失敗しました: %w", err)
	}
	return newsletters, nil
}

// CountByUserID はユーザーのニュースレター数を返す。
func (r *PostgresNewsletterRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM newsletters WHERE user_id = $1`, userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("ニュースレター数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// SumSentStats は送信済みニュースレターの受信者数・開封数・クリック数の合計を返す。
func (r *PostgresNewsletterRepo) SumSentStats(ctx context.Context, userID string) (int, int, int, error) {
	var recipients, opens, clicks int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(recipient_count), 0), COALESCE(SUM(open_count), 0), COALESCE(SUM(click_count), 0)
		 FROM newsletters WHERE user_id = $1 AND status = 'sent'`,
		userID,
	).Scan(&recipients, &opens, &clicks)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("配信統計の取得に失敗しました: %w", err)
	}
	return recipients, opens, clicks, nil
}

// CreateScheduled はニュースレターを作成し、下書きを draft から scheduled にする。
// 下書きが draft 状態でなかった場合はロールバックしてfalseを返す。
func (r *PostgresNewsletterRepo) CreateScheduled(ctx context.Context, n *model.Newsletter) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE drafts SET status = 'scheduled', updated_at = $3
		 WHERE id = $1 AND user_id = $2 AND status = 'draft'`,
		n.DraftID, n.UserID, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("下書きの状態更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO newsletters (id, user_id, draft_id, subject, scheduled_for, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.DraftID, n.Subject, n.ScheduledFor, n.Status, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("ニュースレターの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return true, nil
}

// CancelScheduled は scheduled のニュースレターを削除し、下書きを draft に戻す。
func (r *PostgresNewsletterRepo) CancelScheduled(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var draftID string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM newsletters WHERE id = $1 AND status = 'scheduled' RETURNING draft_id`,
		id,
	).Scan(&draftID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ニュースレターの削除に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE drafts SET status = 'draft', updated_at = now() WHERE id = $1`,
		draftID,
	); err != nil {
		return false, fmt.Errorf("下書きの状態更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return true, nil
}

// TransitionStatus は現在の状態がfromのいずれかである場合に限りtoへ更新する。
func (r *PostgresNewsletterRepo) TransitionStatus(ctx context.Context, id string, from []model.NewsletterStatus, to model.NewsletterStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE newsletters SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = ANY($3)`,
		id, to, pq.Array(statusValues(from)),
	)
	if err != nil {
		return false, fmt.Errorf("ニュースレターの状態遷移に失敗しました: %w", err)
	}
	return rowsUpdated(result)
}

// MarkFailedFrom は現在の状態がfromのいずれかである場合に限り failed にし、理由を保存する。
func (r *PostgresNewsletterRepo) MarkFailedFrom(ctx context.Context, id string, from []model.NewsletterStatus, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE newsletters SET status = 'failed', error_message = $2, updated_at = now()
		 WHERE id = $1 AND status = ANY($3)`,
		id, reason, pq.Array(statusValues(from)),
	)
	if err != nil {
		return false, fmt.Errorf("ニュースレターの失敗状態更新に失敗しました: %w", err)
	}
	return rowsUpdated(result)
}

func statusValues(statuses []model.NewsletterStatus) []string {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}

func rowsUpdated(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// MarkSent は sending のニュースレターを sent にし、下書きを published にする。
func (r *PostgresNewsletterRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, recipientCount int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var draftID string
	err = tx.QueryRowContext(ctx,
		`UPDATE newsletters
		 SET status = 'sent', sent_at = $2, recipient_count = $3, error_message = NULL, updated_at = $2
		 WHERE id = $1 AND status = 'sending'
		 RETURNING draft_id`,
		id, sentAt, recipientCount,
	).Scan(&draftID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("送信中のニュースレターが見つかりません: %s", id)
	}
	if err != nil {
		return fmt.Errorf("ニュースレターの送信完了更新に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE drafts SET status = 'published', updated_at = $2 WHERE id = $1`,
		draftID, sentAt,
	); err != nil {
		return fmt.Errorf("下書きの公開状態更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// MarkFailed は sending 確定後の配信失敗を記録する。状態の条件は付けない。
func (r *PostgresNewsletterRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE newsletters SET status = 'failed', error_message = $2, updated_at = now() WHERE id = $1`,
		id, reason,
	); err != nil {
		return fmt.Errorf("ニュースレターの失敗状態更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ NewsletterRepository = (*PostgresNewsletterRepo)(nil)
