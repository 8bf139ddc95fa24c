package newsletter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/newsletterman/internal/email"
	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Fatalf("%s を期待しましたが: %v", code, err)
	}
}

func TestDispatcherSend_Success(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.drafts.drafts["draft-1"].Status = model.DraftStatusScheduled

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if diff := cmp.Diff(&Outcome{Result: metrics.ResultSent, Recipients: 2}, outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}

	stored := f.newsletters.newsletters["n1"]
	if stored.Status != model.NewsletterStatusSent || stored.RecipientCount != 2 {
		t.Errorf("newsletter = %+v", stored)
	}
	if stored.SentAt == nil || !stored.SentAt.Equal(fixedNow()) {
		t.Errorf("SentAt = %v", stored.SentAt)
	}
	if f.drafts.drafts["draft-1"].Status != model.DraftStatusPublished {
		t.Error("下書きが published になっていません")
	}

	wantCalls := []sendCall{{
		apiKey: "sg-key",
		msg: email.Message{
			Subject: "Subject n1",
			HTML:    "<h1>Subject n1</h1># Weekly\n\nBody",
			Recipients: []email.Recipient{
				{Email: "a@example.com", Name: "A"},
				{Email: "b@example.com"},
			},
		},
	}}
	if diff := cmp.Diff(wantCalls, f.sender.calls, cmp.AllowUnexported(sendCall{})); diff != "" {
		t.Errorf("send mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Newsletter 'Subject n1' sent to 2 subscribers"}, f.notifier.messages); diff != "" {
		t.Errorf("notify mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]dispatchRecord{{metrics.ResultSent, 2}}, f.recorder.dispatches, cmp.AllowUnexported(dispatchRecord{})); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherSend_RetryFromFailed(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusFailed, fixedNow())
	n.ErrorMessage = "SendGrid error: Status code 500"

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if outcome.Result != metrics.ResultSent {
		t.Errorf("Result = %s", outcome.Result)
	}
	if stored := f.newsletters.newsletters["n1"]; stored.ErrorMessage != "" {
		t.Errorf("再送成功後もエラーメッセージが残っています: %q", stored.ErrorMessage)
	}
}

func TestDispatcherSend_NotSendableStatus(t *testing.T) {
	for _, status := range []model.NewsletterStatus{model.NewsletterStatusSending, model.NewsletterStatusSent} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			n := f.addNewsletter("n1", "user-1", "draft-1", status, fixedNow())

			_, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
			requireCode(t, err, model.ErrCodeNewsletterNotSendable)
			if len(f.sender.calls) != 0 {
				t.Error("送信してはいけません")
			}
		})
	}
}

func TestDispatcherSend_NoSubscribers(t *testing.T) {
	t.Run("manual", func(t *testing.T) {
		f := newFixture()
		f.subscribers.active = nil
		n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())

		_, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
		requireCode(t, err, model.ErrCodeNoActiveSubscribers)
		if got := f.newsletters.newsletters["n1"].Status; got != model.NewsletterStatusScheduled {
			t.Errorf("手動送信では状態を変えない: %s", got)
		}
	})

	t.Run("scheduled", func(t *testing.T) {
		f := newFixture()
		f.subscribers.active = nil
		n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())

		outcome, err := f.dispatcher.Send(context.Background(), n, TriggerScheduled)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if outcome.Result != metrics.ResultFailed || outcome.Reason != ReasonNoActiveSubscribers {
			t.Errorf("outcome = %+v", outcome)
		}
		stored := f.newsletters.newsletters["n1"]
		if stored.Status != model.NewsletterStatusFailed || stored.ErrorMessage != ReasonNoActiveSubscribers {
			t.Errorf("newsletter = %+v", stored)
		}
	})
}

func TestDispatcherSend_LostRace(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.newsletters.transitionFn = func(string) (bool, error) { return false, nil }

	_, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	requireCode(t, err, model.ErrCodeNewsletterNotSendable)

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerScheduled)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if outcome.Result != metrics.ResultSkipped {
		t.Errorf("Result = %s, want skipped", outcome.Result)
	}
	if len(f.sender.calls) != 0 {
		t.Error("遷移できなかった場合は送信しない")
	}
}

func TestDispatcherSend_DeliveryFailure(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.sender.sendFn = func(context.Context, string, email.Message) error {
		return errors.New("SendGrid error: Status code 401")
	}

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	if err != nil {
		t.Fatalf("配信失敗はOutcomeで返す: %v", err)
	}
	if outcome.Result != metrics.ResultFailed || outcome.Reason != "SendGrid error: Status code 401" {
		t.Errorf("outcome = %+v", outcome)
	}
	stored := f.newsletters.newsletters["n1"]
	if stored.Status != model.NewsletterStatusFailed || stored.ErrorMessage != "SendGrid error: Status code 401" {
		t.Errorf("newsletter = %+v", stored)
	}
	if len(f.notifier.messages) != 0 {
		t.Error("失敗時は送信完了通知を出さない")
	}
}

func TestDispatcherSend_MissingDraft(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "gone", model.NewsletterStatusScheduled, fixedNow())

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerScheduled)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if outcome.Result != metrics.ResultFailed || outcome.Reason != "Draft not found" {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestDispatcherSend_FormatFailure(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.formatter.formatFn = func(string, string) (string, error) { return "", errors.New("template broken") }

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if outcome.Result != metrics.ResultFailed || outcome.Reason != "template broken" {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(f.sender.calls) != 0 {
		t.Error("整形に失敗した場合は送信しない")
	}
}

func TestDispatcherSend_NotifyFailureIgnored(t *testing.T) {
	f := newFixture()
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.notifier.err = errors.New("telegram down")

	outcome, err := f.dispatcher.Send(context.Background(), n, TriggerManual)
	if err != nil {
		t.Fatalf("通知失敗はエラーにしない: %v", err)
	}
	if outcome.Result != metrics.ResultSent {
		t.Errorf("Result = %s", outcome.Result)
	}
}

func TestDispatcherSend_NoTelegram(t *testing.T) {
	f := newFixture()
	f.users.users["user-1"].TelegramBotToken = ""
	n := f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())

	if _, err := f.dispatcher.Send(context.Background(), n, TriggerManual); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(f.notifier.messages) != 0 {
		t.Error("Telegram未設定なら通知しない")
	}
}
