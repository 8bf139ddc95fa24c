package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsletterman/internal/model"
	"github.com/hitoshi/newsletterman/internal/notify"
	"github.com/hitoshi/newsletterman/internal/repository"
)

// scheduleLayout は予約日時の入力形式（日付 + 時刻）。
const scheduleLayout = "2006-01-02 15:04"

// ScheduleInput はニュースレター予約の入力値。
type ScheduleInput struct {
	DraftID string
	Subject string
	Date    string // YYYY-MM-DD
	Time    string // HH:MM
}

// NewsletterService はニュースレターのサービス層。
type NewsletterService struct {
	newsletterRepo repository.NewsletterRepository
	draftRepo      repository.DraftRepository
	userRepo       repository.UserRepository
	dispatcher     *Dispatcher
	notifier       notify.Notifier
	logger         *slog.Logger
	location       *time.Location
	now            func() time.Time
}

// NewNewsletterService はNewsletterServiceを生成する。予約日時はUTCとして解釈する。
func NewNewsletterService(
	newsletterRepo repository.NewsletterRepository,
	draftRepo repository.DraftRepository,
	userRepo repository.UserRepository,
	dispatcher *Dispatcher,
	notifier notify.Notifier,
	logger *slog.Logger,
) *NewsletterService {
	return &NewsletterService{
		newsletterRepo: newsletterRepo,
		draftRepo:      draftRepo,
		userRepo:       userRepo,
		dispatcher:     dispatcher,
		notifier:       notifier,
		logger:         logger,
		location:       time.UTC,
		now:            time.Now,
	}
}

// Schedule は下書きをニュースレターとして予約し、下書きを scheduled にする。
func (s *NewsletterService) Schedule(ctx context.Context, userID string, input ScheduleInput) (*model.Newsletter, error) {
	subject := strings.TrimSpace(input.Subject)
	if input.DraftID == "" || subject == "" || input.Date == "" || input.Time == "" {
		return nil, model.NewValidationError("下書き・件名・日付・時刻は必須です。")
	}
	scheduledFor, err := time.ParseInLocation(scheduleLayout, input.Date+" "+input.Time, s.location)
	if err != nil {
		return nil, model.NewValidationError("日付は YYYY-MM-DD、時刻は HH:MM の形式で入力してください。")
	}

	draft, err := s.draftRepo.FindByIDAndUser(ctx, input.DraftID, userID)
	if err != nil {
		return nil, fmt.Errorf("下書きの取得に失敗しました: %w", err)
	}
	if draft == nil {
		return nil, model.NewDraftNotFoundError()
	}

	now := s.now()
	n := &model.Newsletter{
		ID:           uuid.New().String(),
		UserID:       userID,
		DraftID:      draft.ID,
		Subject:      subject,
		ScheduledFor: scheduledFor,
		Status:       model.NewsletterStatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.newsletterRepo.CreateScheduled(ctx, n)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, model.NewDraftNotSchedulableError()
	}

	s.notifyUser(ctx, userID, notify.ScheduledMessage(subject, scheduledFor.Format(scheduleLayout)))
	return n, nil
}

// List はユーザーのニュースレターを返す。statusが空の場合は全件。
func (s *NewsletterService) List(ctx context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error) {
	if status != "" && !status.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正なニュースレターステータスです: %s", status))
	}
	list, err := s.newsletterRepo.ListByUserID(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("ニュースレター一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// Get はユーザーのニュースレターを返す。
func (s *NewsletterService) Get(ctx context.Context, userID, newsletterID string) (*model.Newsletter, error) {
	n, err := s.newsletterRepo.FindByIDAndUser(ctx, newsletterID, userID)
	if err != nil {
		return nil, fmt.Errorf("ニュースレターの取得に失敗しました: %w", err)
	}
	if n == nil {
		return nil, model.NewNewsletterNotFoundError()
	}
	return n, nil
}

// SendNow はニュースレターを即時送信する。
func (s *NewsletterService) SendNow(ctx context.Context, userID, newsletterID string) (*Outcome, error) {
	n, err := s.Get(ctx, userID, newsletterID)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Send(ctx, n, TriggerManual)
}

// Cancel は予約中のニュースレターを削除し、下書きを draft に戻す。
func (s *NewsletterService) Cancel(ctx context.Context, userID, newsletterID string) error {
	n, err := s.Get(ctx, userID, newsletterID)
	if err != nil {
		return err
	}
	if n.Status != model.NewsletterStatusScheduled {
		return model.NewNewsletterNotCancellableError()
	}
	cancelled, err := s.newsletterRepo.CancelScheduled(ctx, n.ID)
	if err != nil {
		return err
	}
	if !cancelled {
		return model.NewNewsletterNotCancellableError()
	}
	return nil
}

// notifyUser はTelegram設定があれば通知する。失敗はログのみ。
func (s *NewsletterService) notifyUser(ctx context.Context, userID, text string) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil || !user.HasTelegram() {
		return
	}
	if err := s.notifier.Notify(ctx, user.TelegramBotToken, user.TelegramChatID, text); err != nil {
		s.logger.Warn("予約通知に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
