// Package user はユーザー設定とダッシュボード集計を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/newsletterman/internal/auth"
	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
	"github.com/hitoshi/newsletterman/internal/validate"
)

// ダッシュボードの表示件数
const (
	recentLimit   = 5
	upcomingLimit = 3
)

// IntegrationSettings は外部連携の認証情報。空文字は連携解除を表す。
type IntegrationSettings struct {
	NotionAPIKey     string
	SendGridAPIKey   string
	TelegramBotToken string
	TelegramChatID   string
}

// PasswordChange はパスワード変更の入力値。
type PasswordChange struct {
	Current string
	New     string
	Confirm string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo       repository.UserRepository
	feedRepo       repository.FeedRepository
	articleRepo    repository.ArticleRepository
	draftRepo      repository.DraftRepository
	newsletterRepo repository.NewsletterRepository
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	feedRepo repository.FeedRepository,
	articleRepo repository.ArticleRepository,
	draftRepo repository.DraftRepository,
	newsletterRepo repository.NewsletterRepository,
) *Service {
	return &Service{
		userRepo:       userRepo,
		feedRepo:       feedRepo,
		articleRepo:    articleRepo,
		draftRepo:      draftRepo,
		newsletterRepo: newsletterRepo,
		now:            time.Now,
	}
}

// Get はユーザーを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateIntegrations は外部連携の認証情報を置き換える。
func (s *Service) UpdateIntegrations(ctx context.Context, userID string, settings IntegrationSettings) (*model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.NotionAPIKey = strings.TrimSpace(settings.NotionAPIKey)
	user.SendGridAPIKey = strings.TrimSpace(settings.SendGridAPIKey)
	user.TelegramBotToken = strings.TrimSpace(settings.TelegramBotToken)
	user.TelegramChatID = strings.TrimSpace(settings.TelegramChatID)

	if err := s.userRepo.UpdateIntegrations(ctx, user); err != nil {
		return nil, err
	}
	slog.Info("連携設定を更新しました",
		slog.String("user_id", userID),
		slog.Bool("notion", user.HasNotion()),
		slog.Bool("sendgrid", user.SendGridAPIKey != ""),
		slog.Bool("telegram", user.HasTelegram()),
	)
	return user, nil
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
func (s *Service) ChangePassword(ctx context.Context, userID string, input PasswordChange) error {
	if input.Current == "" || input.New == "" || input.Confirm == "" {
		return model.NewValidationError("現在のパスワード・新しいパスワード・確認用パスワードは必須です。")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, input.Current) {
		return model.NewPasswordMismatchError("現在のパスワードが正しくありません。")
	}
	if input.New != input.Confirm {
		return model.NewPasswordMismatchError("新しいパスワードと確認用パスワードが一致しません。")
	}
	if !validate.Password(input.New) {
		return model.NewValidationError("パスワードは8文字以上72文字以下で入力してください。")
	}

	hash, err := auth.HashPassword(input.New)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	slog.Info("パスワードを変更しました", slog.String("user_id", userID))
	return nil
}

// Dashboard はダッシュボード表示用の集計値を返す。
// 開封率・クリック率は送信済みニュースレターの受信者合計に対する百分率。
func (s *Service) Dashboard(ctx context.Context, userID string) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{}
	var err error

	if stats.FeedCount, err = s.feedRepo.CountByUserID(ctx, userID); err != nil {
		return nil, err
	}
	if stats.ArticleCount, err = s.articleRepo.CountByUserID(ctx, userID); err != nil {
		return nil, err
	}
	if stats.DraftCount, err = s.draftRepo.CountByUserID(ctx, userID); err != nil {
		return nil, err
	}
	if stats.NewsletterCount, err = s.newsletterRepo.CountByUserID(ctx, userID); err != nil {
		return nil, err
	}

	if stats.RecentArticles, err = s.articleRepo.ListRecentByUser(ctx, userID, recentLimit); err != nil {
		return nil, err
	}
	if stats.RecentDrafts, err = s.draftRepo.ListRecentByUser(ctx, userID, recentLimit); err != nil {
		return nil, err
	}
	if stats.RecentNewsletters, err = s.newsletterRepo.ListRecentByUser(ctx, userID, recentLimit); err != nil {
		return nil, err
	}
	if stats.UpcomingNewsletters, err = s.newsletterRepo.ListUpcomingByUser(ctx, userID, s.now(), upcomingLimit); err != nil {
		return nil, err
	}

	recipients, opens, clicks, err := s.newsletterRepo.SumSentStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.TotalRecipients = recipients
	if recipients > 0 {
		stats.OpenRate = float64(opens) / float64(recipients) * 100
		stats.ClickRate = float64(clicks) / float64(recipients) * 100
	}
	return stats, nil
}
