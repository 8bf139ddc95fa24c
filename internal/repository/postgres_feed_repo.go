package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/newsletterman/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

const feedColumns = `id, user_id, name, url, kind, last_fetched_at, created_at, updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*model.Feed, error) {
	feed := &model.Feed{}
	var lastFetchedAt sql.NullTime
	err := row.Scan(
		&feed.ID, &feed.UserID, &feed.Name, &feed.URL, &feed.Kind,
		&lastFetchedAt, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	feed.LastFetchedAt = nullTime(lastFetchedAt)
	return feed, nil
}

// FindByIDAndUser はユーザーが所有するフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find feed: %w", err)
	}
	return feed, nil
}

// ListByUserID はユーザーのフィード一覧を作成日時の降順で返す。
func (r *PostgresFeedRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Feed, error) {
	return r.list(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// ListAll は全ユーザーのフィードを返す。
// 最終取得日時が古い（または未取得の）フィードから順に返す。
func (r *PostgresFeedRepo) ListAll(ctx context.Context) ([]*model.Feed, error) {
	return r.list(ctx,
		`SELECT `+feedColumns+` FROM feeds ORDER BY last_fetched_at ASC NULLS FIRST`,
	)
}

func (r *PostgresFeedRepo) list(ctx context.Context, query string, args ...any) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}
	return feeds, nil
}

// CountByUserID はユーザーのフィード数を返す。
func (r *PostgresFeedRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM feeds WHERE user_id = $1`, userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, user_id, name, url, kind, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		feed.ID, feed.UserID, feed.Name, feed.URL, feed.Kind, feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create feed: %w", err)
	}
	return nil
}

// Delete はフィードを削除する。記事はCASCADE削除される。
func (r *PostgresFeedRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

// UpdateLastFetchedAt は最終取得日時を更新する。
func (r *PostgresFeedRepo) UpdateLastFetchedAt(ctx context.Context, id string, fetchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET last_fetched_at = $2, updated_at = $2 WHERE id = $1`,
		id, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update feed last fetched time: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
