// Package subscriber はニュースレター購読者の管理を提供する。
package subscriber

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/repository"
	"github.com/hitoshi/newsletterman/internal/validate"
)

// SubscriberService は購読者のサービス層。
type SubscriberService struct {
	subscriberRepo repository.SubscriberRepository
	now            func() time.Time
}

// NewSubscriberService はSubscriberServiceを生成する。
func NewSubscriberService(subscriberRepo repository.SubscriberRepository) *SubscriberService {
	return &SubscriberService{
		subscriberRepo: subscriberRepo,
		now:            time.Now,
	}
}

// Add は購読者を追加する。メールアドレスはユーザー内で一意。
func (s *SubscriberService) Add(ctx context.Context, userID, email, name string) (*model.Subscriber, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, model.NewValidationError("メールアドレスは必須です。")
	}
	if !validate.Email(email) {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません。")
	}

	existing, err := s.subscriberRepo.FindByUserAndEmail(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewDuplicateSubscriberError()
	}

	sub := &model.Subscriber{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		Name:      name,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	// 事前確認と挿入の間に同じアドレスが登録された場合はUNIQUE制約で弾かれる
	created, err := s.subscriberRepo.Create(ctx, sub)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, model.NewDuplicateSubscriberError()
	}
	return sub, nil
}

// List はユーザーの購読者を作成日時の降順で返す。
func (s *SubscriberService) List(ctx context.Context, userID string) ([]*model.Subscriber, error) {
	subs, err := s.subscriberRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("購読者一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

// Toggle は購読者の有効/無効を切り替え、更新後の購読者を返す。
func (s *SubscriberService) Toggle(ctx context.Context, userID, subscriberID string) (*model.Subscriber, error) {
	sub, err := s.findOwned(ctx, userID, subscriberID)
	if err != nil {
		return nil, err
	}
	sub.IsActive = !sub.IsActive
	if err := s.subscriberRepo.SetActive(ctx, sub.ID, sub.IsActive); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete は購読者を削除する。
func (s *SubscriberService) Delete(ctx context.Context, userID, subscriberID string) error {
	sub, err := s.findOwned(ctx, userID, subscriberID)
	if err != nil {
		return err
	}
	return s.subscriberRepo.Delete(ctx, sub.ID)
}

func (s *SubscriberService) findOwned(ctx context.Context, userID, subscriberID string) (*model.Subscriber, error) {
	sub, err := s.subscriberRepo.FindByIDAndUser(ctx, subscriberID, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, model.NewSubscriberNotFoundError()
	}
	return sub, nil
}
