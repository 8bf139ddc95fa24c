package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsletterman/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

const subscriberColumns = `id, user_id, email, name, is_active, created_at`

func scanSubscriber(row interface{ Scan(...any) error }) (*model.Subscriber, error) {
	s := &model.Subscriber{}
	if err := row.Scan(&s.ID, &s.UserID, &s.Email, &s.Name, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// FindByIDAndUser はユーザーが所有する購読者を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Subscriber, error) {
	s, err := scanSubscriber(r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByUserAndEmail はユーザー内でメールアドレスが一致する購読者を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByUserAndEmail(ctx context.Context, userID, email string) (*model.Subscriber, error) {
	s, err := scanSubscriber(r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1 AND email = $2`, userID, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	return s, nil
}

// ListByUserID はユーザーの購読者を作成日時の降順で返す。
func (r *PostgresSubscriberRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Subscriber, error) {
	return r.list(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

// ListActiveByUserID はユーザーの有効な購読者を返す。
func (r *PostgresSubscriberRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.Subscriber, error) {
	return r.list(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at`,
		userID)
}

func (r *PostgresSubscriberRepo) list(ctx context.Context, query string, args ...any) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subscribers []*model.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("購読者のスキャンに失敗しました: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読者一覧の読み取りに失敗しました: %w", err)
	}
	return subscribers, nil
}

// Create は購読者を作成する。
// (user_id, email) のユニーク制約に衝突した場合は挿入せずfalseを返す。
func (r *PostgresSubscriberRepo) Create(ctx context.Context, s *model.Subscriber) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, user_id, email, name, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, email) DO NOTHING`,
		s.ID, s.UserID, s.Email, s.Name, s.IsActive, s.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("購読者の作成に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// SetActive は購読者の有効フラグを更新する。
func (r *PostgresSubscriberRepo) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET is_active = $2 WHERE id = $1`, id, active,
	); err != nil {
		return fmt.Errorf("購読者の有効状態の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は購読者を削除する。
func (r *PostgresSubscriberRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("購読者の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
