package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

type mockSessionPurger struct {
	deleteExpiredFn func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockSessionPurger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteExpiredFn(ctx, now)
}

func TestSessionCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	var gotNow time.Time
	purger := &mockSessionPurger{deleteExpiredFn: func(_ context.Context, now time.Time) (int64, error) {
		gotNow = now
		return 7, nil
	}}

	var buf bytes.Buffer
	job := NewSessionCleanupJob(purger, slog.New(slog.NewJSONHandler(&buf, nil)))
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gotNow.Equal(fixed) {
		t.Errorf("DeleteExpired called with %v, want %v", gotNow, fixed)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

func TestSessionCleanupJob_Run_ReturnsError(t *testing.T) {
	dbErr := errors.New("connection refused")
	purger := &mockSessionPurger{deleteExpiredFn: func(context.Context, time.Time) (int64, error) {
		return 0, dbErr
	}}

	var buf bytes.Buffer
	job := NewSessionCleanupJob(purger, slog.New(slog.NewJSONHandler(&buf, nil)))

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Error("failure should be logged")
	}
}
