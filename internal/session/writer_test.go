package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/go-cmp/cmp"
)

type recordingSaver struct {
	mu      sync.Mutex
	titles  []string
	started chan struct{}
	release chan struct{}
	err     error
}

func (r *recordingSaver) save(_ context.Context, s *models.WorkoutSession) error {
	if r.release != nil {
		r.started <- struct{}{}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, s.Title)
	return r.err
}

func (r *recordingSaver) saved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestWriterLastWriteWins verifies that after a flush the latest snapshot is
// the last one written, whatever was coalesced in between.
func TestWriterLastWriteWins(t *testing.T) {
	rs := &recordingSaver{}
	w := newWriter(rs.save, discardLogger())
	defer w.close(context.Background())

	for _, title := range []string{"a", "b", "c", "d"} {
		w.enqueue(&models.WorkoutSession{Title: title})
	}
	if err := w.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got := rs.saved()
	if len(got) == 0 || got[len(got)-1] != "d" {
		t.Errorf("writes = %v, want last write d", got)
	}
	seen := map[string]bool{}
	for _, title := range got {
		if seen[title] {
			t.Errorf("snapshot %s written twice: %v", title, got)
		}
		seen[title] = true
	}
}

// TestWriterCoalescesWhileBusy verifies snapshots queued during a slow write
// collapse into one follow-up write of the newest.
func TestWriterCoalescesWhileBusy(t *testing.T) {
	rs := &recordingSaver{started: make(chan struct{}, 8), release: make(chan struct{})}
	w := newWriter(rs.save, discardLogger())
	defer w.close(context.Background())

	w.enqueue(&models.WorkoutSession{Title: "first"})
	<-rs.started
	w.enqueue(&models.WorkoutSession{Title: "second"})
	w.enqueue(&models.WorkoutSession{Title: "third"})
	close(rs.release)

	if err := w.flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "third"}, rs.saved()); diff != "" {
		t.Errorf("writes (-want +got):\n%s", diff)
	}
}

// TestWriterFlushAfterFailure verifies a failed write is not retried on its own.
func TestWriterFlushAfterFailure(t *testing.T) {
	rs := &recordingSaver{err: errors.New("no space")}
	w := newWriter(rs.save, discardLogger())
	defer w.close(context.Background())

	w.enqueue(&models.WorkoutSession{Title: "x"})
	// The write may already have happened; either way nothing is pending after flush.
	w.flush(context.Background())
	if err := w.flush(context.Background()); err != nil {
		t.Errorf("second flush = %v, want nil with nothing pending", err)
	}
}

// TestWriterCloseDrains verifies close writes the pending snapshot and is idempotent.
func TestWriterCloseDrains(t *testing.T) {
	rs := &recordingSaver{}
	w := newWriter(rs.save, discardLogger())

	w.enqueue(&models.WorkoutSession{Title: "final"})
	if err := w.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	got := rs.saved()
	if len(got) == 0 || got[len(got)-1] != "final" {
		t.Errorf("writes = %v, want final", got)
	}
	if err := w.flush(context.Background()); err != nil {
		t.Errorf("flush after close = %v", err)
	}
}
