package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/claude/ironlog/internal/models"
)

type saveFunc func(ctx context.Context, s *models.WorkoutSession) error

// writer persists session snapshots on a single goroutine. Snapshots are
// written in the order they were enqueued; when several queue up before the
// goroutine gets to them only the latest is written.
type writer struct {
	save saveFunc
	log  *slog.Logger

	mu      sync.Mutex
	pending *models.WorkoutSession

	kick     chan struct{}
	flushReq chan chan error
	stop     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

func newWriter(save saveFunc, log *slog.Logger) *writer {
	w := &writer{
		save:     save,
		log:      log,
		kick:     make(chan struct{}, 1),
		flushReq: make(chan chan error),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue hands a snapshot to the writer without waiting for it to be written.
// The caller must not mutate snap afterwards.
func (w *writer) enqueue(snap *models.WorkoutSession) {
	w.mu.Lock()
	w.pending = snap
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.kick:
			w.drain()
		case reply := <-w.flushReq:
			reply <- w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *writer) drain() error {
	w.mu.Lock()
	snap := w.pending
	w.pending = nil
	w.mu.Unlock()

	if snap == nil {
		return nil
	}
	// Writes are not cancelled once issued.
	if err := w.save(context.Background(), snap); err != nil {
		w.log.Warn("persisting active session failed, will retry on next change",
			"session", snap.ID, "error", err)
		return err
	}
	return nil
}

// flush waits until every enqueued snapshot has been written and returns the
// error of the write it triggered, if any.
func (w *writer) flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case w.flushReq <- reply:
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close writes any pending snapshot and stops the goroutine.
func (w *writer) close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
