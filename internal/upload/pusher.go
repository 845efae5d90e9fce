package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/ironlog/internal/models"
)

// Store is the subset of storage the pusher reads and marks.
type Store interface {
	ListUnsyncedWorkouts(ctx context.Context) ([]models.WorkoutRecord, error)
	MarkWorkoutSynced(ctx context.Context, sessionID string) error
}

// Stats tracks push progress.
type Stats struct {
	Pending int
	Sent    int
	Errored int
}

// Pusher copies finished workouts to a remote server. Failures never reach
// the workout flow; unsent records stay queued for PushPending.
type Pusher struct {
	client  *Client
	store   Store
	timeout time.Duration
	log     *slog.Logger
}

// NewPusher creates a Pusher.
func NewPusher(client *Client, store Store, log *slog.Logger) *Pusher {
	return &Pusher{
		client:  client,
		store:   store,
		timeout: 2 * time.Minute,
		log:     log,
	}
}

// WorkoutFinished pushes one just-finished workout. It blocks until the push
// completes or times out; callers run it on its own goroutine.
func (p *Pusher) WorkoutFinished(rec models.WorkoutRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.push(ctx, rec); err != nil {
		p.log.Warn("workout sync failed, will retry later", "session", rec.Session.ID, "error", err)
		return
	}
	p.log.Info("workout synced", "session", rec.Session.ID)
}

// PushPending sends every workout not yet on the server, oldest first.
// It keeps going past individual failures.
func (p *Pusher) PushPending(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	pending, err := p.store.ListUnsyncedWorkouts(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing unsynced workouts: %w", err)
	}
	stats.Pending = len(pending)

	for _, rec := range pending {
		if err := p.push(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			p.log.Warn("workout sync failed", "session", rec.Session.ID, "error", err)
			stats.Errored++
			continue
		}
		stats.Sent++
	}
	return stats, nil
}

func (p *Pusher) push(ctx context.Context, rec models.WorkoutRecord) error {
	if err := p.client.SendWorkout(ctx, rec); err != nil {
		return err
	}
	if err := p.store.MarkWorkoutSynced(ctx, rec.Session.ID); err != nil {
		return fmt.Errorf("marking %s synced: %w", rec.Session.ID, err)
	}
	return nil
}
