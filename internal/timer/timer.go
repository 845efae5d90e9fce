// Package timer implements the rest countdown between sets. The countdown is
// persisted as a start time and a duration, so it stays correct across
// process restarts and suspension.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/ironlog/internal/models"
)

// ErrInvalidDuration is returned by Start for a non-positive duration.
var ErrInvalidDuration = errors.New("rest duration must be positive")

// Store is the subset of storage the timer persists through.
type Store interface {
	LoadRestTimer(ctx context.Context) (*models.RestTimerState, error)
	SaveRestTimer(ctx context.Context, t models.RestTimerState) error
	ClearRestTimer(ctx context.Context) error
}

// Timer is the single rest countdown.
type Timer struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// New creates a Timer backed by store.
func New(store Store, log *slog.Logger, opts ...Option) *Timer {
	t := &Timer{store: store, now: models.Now, log: log}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Status is a point-in-time view of the countdown.
type Status struct {
	Resting          bool      `json:"resting"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds,omitempty"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

// Start begins a countdown of d, replacing any running one.
func (t *Timer) Start(ctx context.Context, d time.Duration) (models.RestTimerState, error) {
	if d <= 0 {
		return models.RestTimerState{}, fmt.Errorf("got %s: %w", d, ErrInvalidDuration)
	}
	state := models.RestTimerState{StartedAt: t.now(), DurationSeconds: d.Seconds()}
	if err := t.store.SaveRestTimer(ctx, state); err != nil {
		return models.RestTimerState{}, fmt.Errorf("saving rest timer: %w", err)
	}
	return state, nil
}

// Remaining returns the time left on the countdown, or 0 when none is
// running. Reaching 0 clears the persisted countdown.
func (t *Timer) Remaining(ctx context.Context) (time.Duration, error) {
	st, err := t.Status(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(st.RemainingSeconds * float64(time.Second)), nil
}

// Status reports the countdown. It has the same clearing side effect as Remaining.
func (t *Timer) Status(ctx context.Context) (Status, error) {
	state, err := t.store.LoadRestTimer(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("loading rest timer: %w", err)
	}
	if state == nil {
		return Status{}, nil
	}

	left := remaining(*state, t.now())
	if left <= 0 {
		if err := t.store.ClearRestTimer(ctx); err != nil {
			return Status{}, fmt.Errorf("clearing expired rest timer: %w", err)
		}
		return Status{}, nil
	}
	return Status{
		Resting:          true,
		StartedAt:        state.StartedAt,
		DurationSeconds:  state.DurationSeconds,
		RemainingSeconds: left.Seconds(),
	}, nil
}

// Skip stops the countdown and returns how long the rest actually lasted,
// capped at the planned duration.
func (t *Timer) Skip(ctx context.Context) (time.Duration, error) {
	state, err := t.store.LoadRestTimer(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading rest timer: %w", err)
	}
	if err := t.store.ClearRestTimer(ctx); err != nil {
		return 0, fmt.Errorf("clearing rest timer: %w", err)
	}
	if state == nil {
		return 0, nil
	}

	elapsed := t.now().Sub(state.StartedAt)
	planned := time.Duration(state.DurationSeconds * float64(time.Second))
	return max(0, min(elapsed, planned)), nil
}

// Restore runs once at startup and silently drops a countdown that expired
// while the process was not running.
func (t *Timer) Restore(ctx context.Context) error {
	state, err := t.store.LoadRestTimer(ctx)
	if err != nil {
		return fmt.Errorf("loading rest timer: %w", err)
	}
	if state == nil {
		return nil
	}
	if remaining(*state, t.now()) > 0 {
		t.log.Info("resuming rest timer", "started_at", state.StartedAt, "duration_seconds", state.DurationSeconds)
		return nil
	}
	if err := t.store.ClearRestTimer(ctx); err != nil {
		return fmt.Errorf("clearing expired rest timer: %w", err)
	}
	return nil
}

func remaining(state models.RestTimerState, now time.Time) time.Duration {
	planned := time.Duration(state.DurationSeconds * float64(time.Second))
	return max(0, planned-now.Sub(state.StartedAt))
}
