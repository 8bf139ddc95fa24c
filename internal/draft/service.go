// Package draft はニュースレター下書きの作成・編集とNotion同期を提供する。
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
)

// Composer は記事群から下書きのタイトルと本文を組み立てる。
type Composer interface {
	Compose(ctx context.Context, articles []*model.Article) (string, string, error)
}

// Workspace は下書きを外部ワークスペースと同期する。
type Workspace interface {
	PushDraft(ctx context.Context, apiKey, pageID, title, body string) (string, error)
	PullDraft(ctx context.Context, apiKey, pageID string) (string, string, error)
}

// Result は下書き操作の結果。
// 下書き自体の保存には成功したが、Notion同期に失敗した場合はWarningsに理由が入る。
type Result struct {
	Draft    *model.Draft
	Warnings []string
}

// DraftService は下書きのサービス層。
type DraftService struct {
	draftRepo   repository.DraftRepository
	articleRepo repository.ArticleRepository
	userRepo    repository.UserRepository
	composer    Composer
	workspace   Workspace
	logger      *slog.Logger
	now         func() time.Time
}

// NewDraftService はDraftServiceを生成する。
func NewDraftService(
	draftRepo repository.DraftRepository,
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	composer Composer,
	workspace Workspace,
	logger *slog.Logger,
) *DraftService {
	return &DraftService{
		draftRepo:   draftRepo,
		articleRepo: articleRepo,
		userRepo:    userRepo,
		composer:    composer,
		workspace:   workspace,
		logger:      logger,
		now:         time.Now,
	}
}

// List はユーザーの下書きを返す。statusが空の場合は全件。
func (s *DraftService) List(ctx context.Context, userID string, status model.DraftStatus) ([]*model.Draft, error) {
	if status != "" && status != model.DraftStatusDraft && status != model.DraftStatusScheduled && status != model.DraftStatusPublished {
		return nil, model.NewValidationError(fmt.Sprintf("不正な下書きステータスです: %s", status))
	}
	drafts, err := s.draftRepo.ListByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("下書き一覧の取得に失敗しました: %w", err)
	}
	return drafts, nil
}

// Get はユーザーの下書きを返す。
func (s *DraftService) Get(ctx context.Context, userID, draftID string) (*model.Draft, error) {
	d, err := s.draftRepo.FindByIDAndUser(ctx, draftID, userID)
	if err != nil {
		return nil, fmt.Errorf("下書きの取得に失敗しました: %w", err)
	}
	if d == nil {
		return nil, model.NewDraftNotFoundError()
	}
	return d, nil
}

// Create は下書きを作成する。ユーザーがNotionキーを設定していればNotionにも保存する。
func (s *DraftService) Create(ctx context.Context, userID, title, content string) (*Result, error) {
	title, content, err := validateContent(title, content)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, userID, title, content)
}

// Generate は指定記事から下書きを生成する。
// ユーザーのフィードに属さない記事IDは無視し、有効な記事が1件もなければエラーを返す。
// 使用した記事は要約の成否にかかわらず使用済みにする。
func (s *DraftService) Generate(ctx context.Context, userID string, articleIDs []string) (*Result, error) {
	if len(articleIDs) == 0 {
		return nil, model.NewNoArticlesError()
	}

	found, err := s.articleRepo.FindByIDsForUser(ctx, userID, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if len(found) == 0 {
		return nil, model.NewNoArticlesError()
	}
	articles := orderByIDs(found, articleIDs)

	title, content, err := s.composer.Compose(ctx, articles)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	if err := s.articleRepo.MarkUsedInDraft(ctx, ids); err != nil {
		return nil, fmt.Errorf("記事の使用済み更新に失敗しました: %w", err)
	}

	return s.store(ctx, userID, title, content)
}

// Update は下書きのタイトルと本文を更新する。Notionページがあればそちらも更新する。
func (s *DraftService) Update(ctx context.Context, userID, draftID, title, content string) (*Result, error) {
	title, content, err := validateContent(title, content)
	if err != nil {
		return nil, err
	}
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}

	d.Title = title
	d.Content = content
	d.UpdatedAt = s.now()
	if err := s.draftRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("下書きの更新に失敗しました: %w", err)
	}

	result := &Result{Draft: d}
	if d.NotionPageID == "" {
		return result, nil
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !user.HasNotion() {
		return result, nil
	}
	if _, err := s.workspace.PushDraft(ctx, user.NotionAPIKey, d.NotionPageID, d.Title, d.Content); err != nil {
		result.Warnings = append(result.Warnings, s.pushWarning(d.ID, err))
	}
	return result, nil
}

// SyncFromWorkspace はNotionページの内容で下書きを上書きする。
// 取得したタイトルか本文が空の場合は上書きせず警告を返す。
func (s *DraftService) SyncFromWorkspace(ctx context.Context, userID, draftID string) (*Result, error) {
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if d.NotionPageID == "" {
		return nil, model.NewNotionNotConnectedError()
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !user.HasNotion() {
		return nil, model.NewNotionNotConnectedError()
	}

	title, content, err := s.workspace.PullDraft(ctx, user.NotionAPIKey, d.NotionPageID)
	if err != nil {
		s.logger.Error("Notionからの取得に失敗しました",
			slog.String("draft_id", d.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewIntegrationError("Notion", err.Error())
	}

	result := &Result{Draft: d}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		result.Warnings = append(result.Warnings, "Notionから内容を取得できませんでした。")
		return result, nil
	}

	d.Title = title
	d.Content = content
	d.UpdatedAt = s.now()
	if err := s.draftRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("下書きの更新に失敗しました: %w", err)
	}
	return result, nil
}

// Delete は下書きを削除する。予約中の下書きは削除できない。
func (s *DraftService) Delete(ctx context.Context, userID, draftID string) error {
	d, err := s.Get(ctx, userID, draftID)
	if err != nil {
		return err
	}
	if d.Status == model.DraftStatusScheduled {
		return model.NewDraftInUseError()
	}
	if err := s.draftRepo.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("下書きの削除に失敗しました: %w", err)
	}
	return nil
}

// store は新しい下書きを保存し、Notionキーがあれば新規ページとして書き込む。
func (s *DraftService) store(ctx context.Context, userID, title, content string) (*Result, error) {
	now := s.now()
	d := &model.Draft{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Status:    model.DraftStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.draftRepo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("下書きの保存に失敗しました: %w", err)
	}

	result := &Result{Draft: d}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !user.HasNotion() {
		return result, nil
	}

	pageID, err := s.workspace.PushDraft(ctx, user.NotionAPIKey, "", d.Title, d.Content)
	if err != nil {
		result.Warnings = append(result.Warnings, s.pushWarning(d.ID, err))
		return result, nil
	}
	d.NotionPageID = pageID
	if err := s.draftRepo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("NotionページIDの保存に失敗しました: %w", err)
	}
	return result, nil
}

func (s *DraftService) pushWarning(draftID string, err error) string {
	s.logger.Warn("Notionへの保存に失敗しました",
		slog.String("draft_id", draftID),
		slog.String("error", err.Error()),
	)
	return fmt.Sprintf("下書きは保存されましたが、Notionへの保存に失敗しました: %v", err)
}

func validateContent(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return "", "", model.NewValidationError("タイトルと本文は必須です。")
	}
	return title, content, nil
}

// orderByIDs は記事をリクエストされたIDの順に並べ替える。
func orderByIDs(articles []*model.Article, ids []string) []*model.Article {
	byID := make(map[string]*model.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	ordered := make([]*model.Article, 0, len(articles))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
			delete(byID, id)
		}
	}
	return ordered
}
