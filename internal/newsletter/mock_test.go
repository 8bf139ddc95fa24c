package newsletter

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/hitoshi/newsletterman/internal/email"
	"github.com/hitoshi/newsletterman/internal/model"
)

// mockNewsletterRepo は条件付き状態遷移を再現するインメモリ実装。
type mockNewsletterRepo struct {
	newsletters map[string]*model.Newsletter
	drafts      *mockDraftRepo
	// transitionFn が設定されている場合はTransitionStatusの結果を差し替える
	transitionFn func(id string) (bool, error)
	// beforeMarkFailedFrom は条件付き更新の直前に呼ばれる（並行処理の再現用）
	beforeMarkFailedFrom func(id string)
	listDueErr   error
}

func newMockNewsletterRepo(drafts *mockDraftRepo) *mockNewsletterRepo {
	return &mockNewsletterRepo{newsletters: map[string]*model.Newsletter{}, drafts: drafts}
}

func (m *mockNewsletterRepo) FindByID(_ context.Context, id string) (*model.Newsletter, error) {
	return m.newsletters[id], nil
}
func (m *mockNewsletterRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Newsletter, error) {
	n, ok := m.newsletters[id]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	return n, nil
}
func (m *mockNewsletterRepo) ListByUserID(_ context.Context, userID string, status model.NewsletterStatus) ([]*model.Newsletter, error) {
	var out []*model.Newsletter
	for _, n := range m.newsletters {
		if n.UserID == userID && (status == "" || n.Status == status) {
			out = append(out, n)
		}
	}
	return out, nil
}
func (m *mockNewsletterRepo) ListRecentByUser(_ context.Context, _ string, _ int) ([]*model.Newsletter, error) {
	return nil, nil
}
func (m *mockNewsletterRepo) ListUpcomingByUser(_ context.Context, _ string, _ time.Time, _ int) ([]*model.Newsletter, error) {
	return nil, nil
}
func (m *mockNewsletterRepo) ListDue(_ context.Context, now time.Time) ([]*model.Newsletter, error) {
	if m.listDueErr != nil {
		return nil, m.listDueErr
	}
	var out []*model.Newsletter
	for _, n := range m.newsletters {
		if n.Status == model.NewsletterStatusScheduled && !n.ScheduledFor.After(now) {
			cp := *n
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Newsletter) int { return a.ScheduledFor.Compare(b.ScheduledFor) })
	return out, nil
}
func (m *mockNewsletterRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return len(m.newsletters), nil
}
func (m *mockNewsletterRepo) SumSentStats(_ context.Context, _ string) (int, int, int, error) {
	return 0, 0, 0, nil
}
func (m *mockNewsletterRepo) CreateScheduled(_ context.Context, n *model.Newsletter) (bool, error) {
	d := m.drafts.drafts[n.DraftID]
	if d == nil || d.Status != model.DraftStatusDraft {
		return false, nil
	}
	d.Status = model.DraftStatusScheduled
	cp := *n
	m.newsletters[n.ID] = &cp
	return true, nil
}
func (m *mockNewsletterRepo) CancelScheduled(_ context.Context, id string) (bool, error) {
	n := m.newsletters[id]
	if n == nil || n.Status != model.NewsletterStatusScheduled {
		return false, nil
	}
	if d := m.drafts.drafts[n.DraftID]; d != nil {
		d.Status = model.DraftStatusDraft
	}
	delete(m.newsletters, id)
	return true, nil
}
func (m *mockNewsletterRepo) TransitionStatus(_ context.Context, id string, from []model.NewsletterStatus, to model.NewsletterStatus) (bool, error) {
	if m.transitionFn != nil {
		return m.transitionFn(id)
	}
	n := m.newsletters[id]
	if n == nil || !slices.Contains(from, n.Status) {
		return false, nil
	}
	n.Status = to
	return true, nil
}
func (m *mockNewsletterRepo) MarkSent(_ context.Context, id string, sentAt time.Time, recipientCount int) error {
	n := m.newsletters[id]
	n.Status = model.NewsletterStatusSent
	n.SentAt = &sentAt
	n.RecipientCount = recipientCount
	n.ErrorMessage = ""
	if d := m.drafts.drafts[n.DraftID]; d != nil {
		d.Status = model.DraftStatusPublished
	}
	return nil
}
func (m *mockNewsletterRepo) MarkFailed(_ context.Context, id string, reason string) error {
	n := m.newsletters[id]
	n.Status = model.NewsletterStatusFailed
	n.ErrorMessage = reason
	return nil
}

func (m *mockNewsletterRepo) MarkFailedFrom(_ context.Context, id string, from []model.NewsletterStatus, reason string) (bool, error) {
	if m.beforeMarkFailedFrom != nil {
		m.beforeMarkFailedFrom(id)
	}
	n := m.newsletters[id]
	if n == nil || !slices.Contains(from, n.Status) {
		return false, nil
	}
	n.Status = model.NewsletterStatusFailed
	n.ErrorMessage = reason
	return true, nil
}

type mockDraftRepo struct {
	drafts map[string]*model.Draft
}

func (m *mockDraftRepo) FindByID(_ context.Context, id string) (*model.Draft, error) {
	return m.drafts[id], nil
}
func (m *mockDraftRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Draft, error) {
	d, ok := m.drafts[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	return d, nil
}
func (m *mockDraftRepo) ListByUserID(_ context.Context, _ string, _ model.DraftStatus) ([]*model.Draft, error) {
	return nil, nil
}
func (m *mockDraftRepo) ListRecentByUser(_ context.Context, _ string, _ int) ([]*model.Draft, error) {
	return nil, nil
}
func (m *mockDraftRepo) CountByUserID(_ context.Context, _ string) (int, error) { return 0, nil }
func (m *mockDraftRepo) Create(_ context.Context, _ *model.Draft) error         { return nil }
func (m *mockDraftRepo) Update(_ context.Context, _ *model.Draft) error         { return nil }
func (m *mockDraftRepo) Delete(_ context.Context, _ string) error               { return nil }

type mockSubscriberRepo struct {
	active map[string][]*model.Subscriber // user id -> active subscribers
}

func (m *mockSubscriberRepo) FindByIDAndUser(_ context.Context, _, _ string) (*model.Subscriber, error) {
	return nil, nil
}
func (m *mockSubscriberRepo) FindByUserAndEmail(_ context.Context, _, _ string) (*model.Subscriber, error) {
	return nil, nil
}
func (m *mockSubscriberRepo) ListByUserID(_ context.Context, userID string) ([]*model.Subscriber, error) {
	return m.active[userID], nil
}
func (m *mockSubscriberRepo) ListActiveByUserID(_ context.Context, userID string) ([]*model.Subscriber, error) {
	return m.active[userID], nil
}
func (m *mockSubscriberRepo) Create(_ context.Context, _ *model.Subscriber) (bool, error) {
	return true, nil
}
func (m *mockSubscriberRepo) SetActive(_ context.Context, _ string, _ bool) error { return nil }
func (m *mockSubscriberRepo) Delete(_ context.Context, _ string) error            { return nil }

type mockUserRepo struct {
	users map[string]*model.User
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}
func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) ExistsByEmailOrUsername(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error             { return nil }
func (m *mockUserRepo) UpdateIntegrations(_ context.Context, _ *model.User) error { return nil }
func (m *mockUserRepo) UpdatePassword(_ context.Context, _, _ string) error       { return nil }

type mockFormatter struct {
	formatFn func(subject, markdown string) (string, error)
}

func (m *mockFormatter) Format(subject, markdown string) (string, error) {
	if m.formatFn != nil {
		return m.formatFn(subject, markdown)
	}
	return "<h1>" + subject + "</h1>" + markdown, nil
}

type sendCall struct {
	apiKey string
	msg    email.Message
}

type mockSender struct {
	sendFn func(ctx context.Context, apiKey string, msg email.Message) error
	calls  []sendCall
}

func (m *mockSender) Send(ctx context.Context, apiKey string, msg email.Message) error {
	m.calls = append(m.calls, sendCall{apiKey: apiKey, msg: msg})
	if m.sendFn != nil {
		return m.sendFn(ctx, apiKey, msg)
	}
	return nil
}

type mockNotifier struct {
	err      error
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, _, _, text string) error {
	m.messages = append(m.messages, text)
	return m.err
}

type dispatchRecord struct {
	result     string
	recipients int
}

type mockRecorder struct {
	dispatches []dispatchRecord
}

func (m *mockRecorder) RecordIngest(string, string, time.Duration, int) {}
func (m *mockRecorder) RecordDispatch(result string, recipients int) {
	m.dispatches = append(m.dispatches, dispatchRecord{result, recipients})
}
func (m *mockRecorder) RecordSummarize(string, string) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)
}

// fixture は配信テスト用の依存一式。
type fixture struct {
	newsletters *mockNewsletterRepo
	drafts      *mockDraftRepo
	subscribers *mockSubscriberRepo
	users       *mockUserRepo
	formatter   *mockFormatter
	sender      *mockSender
	notifier    *mockNotifier
	recorder    *mockRecorder
	dispatcher  *Dispatcher
	svc         *NewsletterService
	checker     *Checker
}

func newFixture() *fixture {
	drafts := &mockDraftRepo{drafts: map[string]*model.Draft{
		"draft-1": {ID: "draft-1", UserID: "user-1", Title: "Weekly", Content: "# Weekly\n\nBody", Status: model.DraftStatusDraft},
	}}
	f := &fixture{
		drafts:      drafts,
		newsletters: newMockNewsletterRepo(drafts),
		subscribers: &mockSubscriberRepo{active: map[string][]*model.Subscriber{
			"user-1": {
				{ID: "s1", UserID: "user-1", Email: "a@example.com", Name: "A", IsActive: true},
				{ID: "s2", UserID: "user-1", Email: "b@example.com", IsActive: true},
			},
		}},
		users: &mockUserRepo{users: map[string]*model.User{
			"user-1": {ID: "user-1", SendGridAPIKey: "sg-key", TelegramBotToken: "bot", TelegramChatID: "chat"},
			"user-2": {ID: "user-2"},
		}},
		formatter: &mockFormatter{},
		sender:    &mockSender{},
		notifier:  &mockNotifier{},
		recorder:  &mockRecorder{},
	}
	f.dispatcher = NewDispatcher(f.newsletters, f.drafts, f.subscribers, f.users,
		f.formatter, f.sender, f.notifier, f.recorder, testLogger())
	f.dispatcher.now = fixedNow
	f.svc = NewNewsletterService(f.newsletters, f.drafts, f.users, f.dispatcher, f.notifier, testLogger())
	f.svc.now = fixedNow
	f.checker = NewChecker(f.newsletters, f.dispatcher, testLogger())
	f.checker.now = fixedNow
	return f
}

// addNewsletter は指定状態のニュースレターを直接登録する。
func (f *fixture) addNewsletter(id, userID, draftID string, status model.NewsletterStatus, at time.Time) *model.Newsletter {
	n := &model.Newsletter{
		ID:           id,
		UserID:       userID,
		DraftID:      draftID,
		Subject:      "Subject " + id,
		ScheduledFor: at,
		Status:       status,
	}
	f.newsletters.newsletters[id] = n
	return n
}
