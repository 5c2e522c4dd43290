package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

type failingStore struct{}

func (failingStore) DeleteExpired(context.Context, time.Duration) (int, error) {
	return 0, errors.New("boom")
}

func TestNewCleanupJob_Interval(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"quarter of ttl", 24 * time.Hour, 6 * time.Hour},
		{"minimum one minute", time.Minute, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewCleanupJob(NewMemoryStateStore(), newTestLogger(&bytes.Buffer{}), tt.ttl)
			if job.Interval != tt.want {
				t.Errorf("Interval = %v, want %v", job.Interval, tt.want)
			}
		})
	}
}

func TestCleanupJob_Run_DeletesExpiredStates(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	store.Save(ctx, &model.DashboardState{UID: "old"})
	now = now.Add(2 * time.Hour)
	store.Save(ctx, &model.DashboardState{UID: "fresh"})

	var buf bytes.Buffer
	job := NewCleanupJob(store, newTestLogger(&buf), time.Hour)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if st, _ := store.Get(ctx, "old"); st != nil {
		t.Error("expired state should be deleted")
	}
	if st, _ := store.Get(ctx, "fresh"); st == nil {
		t.Error("fresh state should be kept")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log should be JSON: %v", err)
	}
	if entry["deleted_count"] != float64(1) {
		t.Errorf("deleted_count = %v, want 1", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_NothingToDelete(t *testing.T) {
	job := NewCleanupJob(NewMemoryStateStore(), newTestLogger(&bytes.Buffer{}), time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("cleanup on empty store should succeed, got %v", err)
	}
}

func TestCleanupJob_Run_StoreError(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(failingStore{}, newTestLogger(&buf), time.Hour)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("failure should be logged at ERROR, got %s", buf.String())
	}
}

func TestCleanupJob_Start_StopsOnCancel(t *testing.T) {
	job := NewCleanupJob(NewMemoryStateStore(), newTestLogger(&bytes.Buffer{}), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return after context cancel")
	}
}
