package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsletterman/internal/model"
)

// PostgresDraftRepo はPostgreSQLを使用した下書きリポジトリ。
type PostgresDraftRepo struct {
	db *sql.DB
}

// NewPostgresDraftRepo はPostgresDraftRepoを生成する。
func NewPostgresDraftRepo(db *sql.DB) *PostgresDraftRepo {
	return &PostgresDraftRepo{db: db}
}

const draftColumns = `id, user_id, title, content, notion_page_id, status, created_at, updated_at`

func scanDraft(row interface{ Scan(...any) error }) (*model.Draft, error) {
	d := &model.Draft{}
	var notionPageID sql.NullString
	if err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.Content, &notionPageID,
		&d.Status, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.NotionPageID = nullStringValue(notionPageID)
	return d, nil
}

// FindByID は指定IDの下書きを取得する。見つからない場合はnilを返す。
func (r *PostgresDraftRepo) FindByID(ctx context.Context, id string) (*model.Draft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("下書きの取得に失敗しました: %w", err)
	}
	return d, nil
}

// FindByIDAndUser はユーザーが所有する下書きを取得する。見つからない場合はnilを返す。
func (r *PostgresDraftRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Draft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = $1 AND user_id = $2`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("下書きの取得に失敗しました: %w", err)
	}
	return d, nil
}

// ListByUserID はユーザーの下書きを更新日時の降順で返す。statusが空の場合は全件。
func (r *PostgresDraftRepo) ListByUserID(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error) {
	if status == "" {
		return r.list(ctx,
			`SELECT `+draftColumns+` FROM drafts WHERE user_id = $1 ORDER BY updated_at DESC`,
			userID)
	}
	return r.list(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE user_id = $1 AND status = $2 ORDER BY updated_at DESC`,
		userID, status)
}

// ListRecentByUser はユーザーの最近更新された下書きを返す。
func (r *PostgresDraftRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Draft, error) {
	return r.list(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		userID, limit)
}

func (r *PostgresDraftRepo) list(ctx context.Context, query string, args ...any) ([]*model.Draft, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("下書き一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var drafts []*model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("下書きのスキャンに失敗しました: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("下書き一覧の読み取りに失敗しました: %w", err)
	}
	return drafts, nil
}

// CountByUserID はユーザーの下書き数を返す。
func (r *PostgresDraftRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM drafts WHERE user_id = $1`, userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("下書き数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は下書きを作成する。
func (r *PostgresDraftRepo) Create(ctx context.Context, d *model.Draft) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drafts (id, user_id, title, content, notion_page_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.UserID, d.Title, d.Content, nullString(d.NotionPageID), d.Status, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("下書きの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタイトル・本文・Notionページ・更新日時を更新する。
// ステータスはニュースレターの状態遷移でのみ変更されるため対象外。
func (r *PostgresDraftRepo) Update(ctx context.Context, d *model.Draft) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE drafts SET title = $2, content = $3, notion_page_id = $4, updated_at = $5
		 WHERE id = $1`,
		d.ID, d.Title, d.Content, nullString(d.NotionPageID), d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("下書きの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は下書きを削除する。
func (r *PostgresDraftRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("下書きの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DraftRepository = (*PostgresDraftRepo)(nil)
