package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/lib/pq"
)

// defaultArticlesPerPage は記事一覧の1ページあたりの件数。
const defaultArticlesPerPage = 20

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// ExistsByFeedAndURL はフィード内に同一URLの記事が存在するかを返す。
func (r *PostgresArticleRepo) ExistsByFeedAndURL(ctx context.Context, feedID, url string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE feed_id = $1 AND url = $2)`,
		feedID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("記事の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create は記事を作成する。
// (feed_id, url) のユニーク制約に衝突した場合は挿入せずfalseを返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, feed_id, title, url, content, published_at, fetched_at, used_in_draft)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (feed_id, url) DO NOTHING`,
		article.ID, article.FeedID, article.Title, article.URL, article.Content,
		article.PublishedAt, article.FetchedAt, article.UsedInDraft,
	)
	if err != nil {
		return false, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// ListByUser はユーザーの記事をフィルタ条件で取得し、総件数とともに返す。
// 取得日時の降順、ページは1始まり。
func (r *PostgresArticleRepo) ListByUser(ctx context.Context, userID string, filter model.ArticleFilter) ([]*model.ArticleWithFeed, int, error) {
	conds := []string{"f.user_id = $1"}
	args := []any{userID}
	if filter.FeedID != "" {
		args = append(args, filter.FeedID)
		conds = append(conds, fmt.Sprintf("a.feed_id = $%d", len(args)))
	}
	if filter.UnusedOnly {
		conds = append(conds, "a.used_in_draft = FALSE")
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM articles a JOIN feeds f ON f.id = a.feed_id WHERE `+where,
		args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultArticlesPerPage
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)

	articles, err := r.listWithFeed(ctx,
		`SELECT a.id, a.feed_id, a.title, a.url, a.content, a.published_at, a.fetched_at, a.used_in_draft, f.name
		 FROM articles a JOIN feeds f ON f.id = a.feed_id
		 WHERE `+where+fmt.Sprintf(`
		 ORDER BY a.fetched_at DESC, a.id
		 LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// ListRecentByUser はユーザーの最新記事を取得日時の降順で返す。
func (r *PostgresArticleRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.ArticleWithFeed, error) {
	return r.listWithFeed(ctx,
		`SELECT a.id, a.feed_id, a.title, a.url, a.content, a.published_at, a.fetched_at, a.used_in_draft, f.name
		 FROM articles a JOIN feeds f ON f.id = a.feed_id
		 WHERE f.user_id = $1
		 ORDER BY a.fetched_at DESC
		 LIMIT $2`,
		userID, limit,
	)
}

func (r *PostgresArticleRepo) listWithFeed(ctx context.Context, query string, args ...any) ([]*model.ArticleWithFeed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []*model.ArticleWithFeed
	for rows.Next() {
		a := &model.ArticleWithFeed{}
		var publishedAt sql.NullTime
		if err := rows.Scan(
			&a.ID, &a.FeedID, &a.Title, &a.URL, &a.Content,
			&publishedAt, &a.FetchedAt, &a.UsedInDraft, &a.FeedName,
		); err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		a.PublishedAt = nullTime(publishedAt)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}
	return articles, nil
}

// FindByIDsForUser はユーザーが所有するフィードの記事のみをID指定で返す。
// 他ユーザーの記事や存在しないIDは結果に含まれない。
func (r *PostgresArticleRepo) FindByIDsForUser(ctx context.Context, userID string, ids []string) ([]*model.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.feed_id, a.title, a.url, a.content, a.published_at, a.fetched_at, a.used_in_draft
		 FROM articles a JOIN feeds f ON f.id = a.feed_id
		 WHERE f.user_id = $1 AND a.id = ANY($2)
		 ORDER BY a.fetched_at DESC`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		a := &model.Article{}
		var publishedAt sql.NullTime
		if err := rows.Scan(
			&a.ID, &a.FeedID, &a.Title, &a.URL, &a.Content,
			&publishedAt, &a.FetchedAt, &a.UsedInDraft,
		); err != nil {
			return nil, fmt.Errorf("記事のスキャンに失敗しました: %w", err)
		}
		a.PublishedAt = nullTime(publishedAt)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事の読み取りに失敗しました: %w", err)
	}
	return articles, nil
}

// MarkUsedInDraft は記事を下書き使用済みにする。
func (r *PostgresArticleRepo) MarkUsedInDraft(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE articles SET used_in_draft = TRUE WHERE id = ANY($1)`,
		pq.Array(ids),
	); err != nil {
		return fmt.Errorf("記事の使用済み更新に失敗しました: %w", err)
	}
	return nil
}

// CountByUserID はユーザーの記事数を返す。
func (r *PostgresArticleRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM articles a JOIN feeds f ON f.id = a.feed_id WHERE f.user_id = $1`,
		userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
