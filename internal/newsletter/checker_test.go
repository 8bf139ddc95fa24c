package newsletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/newsletterman/internal/email"
	"github.com/hitoshi/newsletterman/internal/metrics"
	"github.com/hitoshi/newsletterman/internal/model"
)

func TestCheckerRun_ProcessesDueOnly(t *testing.T) {
	f := newFixture()
	f.drafts.drafts["draft-2"] = &model.Draft{ID: "draft-2", UserID: "user-1", Content: "two", Status: model.DraftStatusScheduled}
	f.drafts.drafts["draft-3"] = &model.Draft{ID: "draft-3", UserID: "user-1", Content: "three", Status: model.DraftStatusScheduled}

	f.addNewsletter("early", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow().Add(-2*time.Hour))
	f.addNewsletter("now", "user-1", "draft-2", model.NewsletterStatusScheduled, fixedNow())
	f.addNewsletter("future", "user-1", "draft-3", model.NewsletterStatusScheduled, fixedNow().Add(time.Minute))
	f.addNewsletter("failed", "user-1", "draft-1", model.NewsletterStatusFailed, fixedNow().Add(-time.Hour))

	result, err := f.checker.Run(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	want := &CheckResult{
		Processed: 2,
		Results: []ItemResult{
			{ID: "early", Result: metrics.ResultSent, Recipients: 2},
			{ID: "now", Result: metrics.ResultSent, Recipients: 2},
		},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if got := f.newsletters.newsletters["future"].Status; got != model.NewsletterStatusScheduled {
		t.Errorf("未来の予約は送信しない: %s", got)
	}
	if got := f.newsletters.newsletters["failed"].Status; got != model.NewsletterStatusFailed {
		t.Errorf("failed は自動再送しない: %s", got)
	}
}

func TestCheckerRun_ContinuesAfterFailure(t *testing.T) {
	f := newFixture()
	f.drafts.drafts["draft-2"] = &model.Draft{ID: "draft-2", UserID: "user-2", Content: "two", Status: model.DraftStatusScheduled}
	f.addNewsletter("a", "user-2", "draft-2", model.NewsletterStatusScheduled, fixedNow().Add(-time.Hour))
	f.addNewsletter("b", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())

	result, err := f.checker.Run(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	want := []ItemResult{
		{ID: "a", Result: metrics.ResultFailed, Reason: ReasonNoActiveSubscribers},
		{ID: "b", Result: metrics.ResultSent, Recipients: 2},
	}
	if diff := cmp.Diff(want, result.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckerRun_SendErrorRecorded(t *testing.T) {
	f := newFixture()
	f.addNewsletter("a", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	f.sender.sendFn = func(context.Context, string, email.Message) error {
		return email.ErrAPIKeyNotConfigured
	}

	result, err := f.checker.Run(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Processed != 1 || result.Results[0].Result != metrics.ResultFailed {
		t.Errorf("result = %+v", result)
	}
	if got := f.newsletters.newsletters["a"].ErrorMessage; got != email.ErrAPIKeyNotConfigured.Error() {
		t.Errorf("ErrorMessage = %q", got)
	}
}

func TestCheckerRun_NothingDue(t *testing.T) {
	f := newFixture()

	result, err := f.checker.Run(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if result.Processed != 0 || len(result.Results) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestCheckerRun_ListError(t *testing.T) {
	f := newFixture()
	f.newsletters.listDueErr = errors.New("db down")

	if _, err := f.checker.Run(context.Background()); err == nil {
		t.Fatal("エラーを期待しました")
	}
}

func TestCheckerRun_NoSubscribersDoesNotOverwriteSent(t *testing.T) {
	f := newFixture()
	f.subscribers.active = nil
	f.addNewsletter("n1", "user-1", "draft-1", model.NewsletterStatusScheduled, fixedNow())
	// 一覧取得後、別の確認処理が先に送信を完了させる
	f.newsletters.beforeMarkFailedFrom = func(id string) {
		f.newsletters.newsletters[id].Status = model.NewsletterStatusSent
	}

	result, err := f.checker.Run(context.Background())
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	want := []ItemResult{{ID: "n1", Result: metrics.ResultSkipped, Reason: "already being processed"}}
	if diff := cmp.Diff(want, result.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	stored := f.newsletters.newsletters["n1"]
	if stored.Status != model.NewsletterStatusSent || stored.ErrorMessage != "" {
		t.Errorf("送信済みを failed で上書きしてはいけない: %+v", stored)
	}
}
