// Package session owns the lifecycle of the one in-progress workout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrNoActiveSession      = errors.New("no active workout session")
	ErrConfirmationRequired = errors.New("cancel requires confirmation")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrInvalidExercise      = errors.New("invalid exercise")
)

const (
	defaultTargetSets = 3
	defaultTargetReps = "8-12"
)

// State is the lifecycle state of the manager.
type State int

const (
	StateNone State = iota
	StateActive
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	}
	return "none"
}

// Notifier is told about every finished workout. It is called on its own
// goroutine and its outcome never affects Finish.
type Notifier interface {
	WorkoutFinished(rec models.WorkoutRecord)
}

// Manager is the workout session state machine. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	store    storage.Store
	recorder *analytics.Recorder
	writer   *writer
	notifier Notifier
	now      func() time.Time
	newID    func() string
	log      *slog.Logger

	state   State
	session *models.WorkoutSession
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// New creates a Manager and loads any persisted active session before
// returning, so no mutation can race the initial read. A failed load is
// logged and the manager starts with no session.
func New(ctx context.Context, store storage.Store, recorder *analytics.Recorder, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		recorder: recorder,
		now:      models.Now,
		newID:    uuid.NewString,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.writer = newWriter(store.SaveActiveSession, m.log)

	persisted, err := store.LoadActiveSession(ctx)
	switch {
	case err != nil:
		m.log.Error("loading active session", "error", err)
	case persisted != nil:
		m.session = persisted
		m.state = StateActive
		m.log.Info("restored active session", "session", persisted.ID, "workout", persisted.WorkoutID)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active returns a copy of the active session.
func (m *Manager) Active() (*models.WorkoutSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return nil, false
	}
	return m.session.Clone(), true
}

// Flush waits until the latest session snapshot has been written.
func (m *Manager) Flush(ctx context.Context) error {
	return m.writer.flush(ctx)
}

// Close writes any pending snapshot and stops the background writer.
func (m *Manager) Close(ctx context.Context) error {
	return m.writer.close(ctx)
}

// Initialize opens a workout. A persisted session for the same workout is
// resumed unchanged; anything else is replaced by a fresh session built
// from tmpl. resumed reports which happened.
func (m *Manager) Initialize(ctx context.Context, tmpl models.WorkoutTemplate) (*models.WorkoutSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive && m.session.WorkoutID == tmpl.ID {
		return m.session.Clone(), true, nil
	}
	if m.state == StateActive {
		m.log.Info("replacing active session", "session", m.session.ID, "workout", m.session.WorkoutID)
	}

	s := &models.WorkoutSession{
		ID:        m.newID(),
		WorkoutID: tmpl.ID,
		Title:     tmpl.Title,
		StartedAt: m.now(),
		Exercises: make([]models.ExerciseSession, 0, len(tmpl.Exercises)),
	}
	for _, te := range tmpl.Exercises {
		s.Exercises = append(s.Exercises, newExercise(te))
	}

	m.session = s
	m.state = StateActive
	m.persist()

	m.log.Info("workout started", "session", s.ID, "workout", s.WorkoutID, "exercises", len(s.Exercises))
	return s.Clone(), false, nil
}

func newExercise(te models.TemplateExercise) models.ExerciseSession {
	ex := models.ExerciseSession{
		ExerciseID:    te.ExerciseID,
		Name:          te.Name,
		Category:      te.Category,
		TargetSets:    te.TargetSets,
		TargetReps:    te.TargetReps,
		Bodyweight:    te.Bodyweight,
		CompletedSets: []models.SetRecord{},
	}
	if ex.TargetSets <= 0 {
		ex.TargetSets = defaultTargetSets
	}
	if ex.TargetReps == "" {
		ex.TargetReps = defaultTargetReps
	}
	return ex
}

// persist hands a snapshot of the session to the background writer.
// Callers must hold m.mu.
func (m *Manager) persist() {
	m.writer.enqueue(m.session.Clone())
}

func (m *Manager) requireActive() error {
	if m.state != StateActive {
		return ErrNoActiveSession
	}
	return nil
}

func (m *Manager) exercise(e int) (*models.ExerciseSession, error) {
	if e < 0 || e >= len(m.session.Exercises) {
		return nil, fmt.Errorf("exercise %d of %d: %w", e, len(m.session.Exercises), ErrIndexOutOfRange)
	}
	return &m.session.Exercises[e], nil
}

func (m *Manager) set(e, s int) (*models.ExerciseSession, error) {
	ex, err := m.exercise(e)
	if err != nil {
		return nil, err
	}
	if s < 0 || s >= len(ex.CompletedSets) {
		return nil, fmt.Errorf("set %d of %d in exercise %d: %w", s, len(ex.CompletedSets), e, ErrIndexOutOfRange)
	}
	return ex, nil
}

func validSet(ex *models.ExerciseSession, weight float64, reps int, unit models.Unit) bool {
	if reps <= 0 || !unit.Valid() || weight < 0 {
		return false
	}
	return weight > 0 || ex.Bodyweight
}

// syncCursor keeps CurrentSetIndex pointing at the next set of the current exercise.
func (m *Manager) syncCursor() {
	s := m.session
	if len(s.Exercises) == 0 {
		s.CurrentExerciseIndex, s.CurrentSetIndex = 0, 0
		return
	}
	s.CurrentExerciseIndex = min(max(s.CurrentExerciseIndex, 0), len(s.Exercises)-1)
	ex := &s.Exercises[s.CurrentExerciseIndex]
	if ex.IsCompleted {
		s.CurrentSetIndex = 0
	} else {
		s.CurrentSetIndex = len(ex.CompletedSets)
	}
}

// nextIncomplete returns the first incomplete exercise after from, wrapping
// around, or -1 when every exercise is complete.
func (m *Manager) nextIncomplete(from int) int {
	n := len(m.session.Exercises)
	for i := 1; i < n; i++ {
		j := (from + i) % n
		if !m.session.Exercises[j].IsCompleted {
			return j
		}
	}
	return -1
}

// CompleteSet logs a set for the current exercise. Invalid input is
// rejected with false and no change.
func (m *Manager) CompleteSet(weight float64, reps int, unit models.Unit) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return false, err
	}
	idx := m.session.CurrentExerciseIndex
	ex, err := m.exercise(idx)
	if err != nil {
		return false, err
	}
	if !validSet(ex, weight, reps, unit) {
		return false, nil
	}

	now := m.now()
	ex.CompletedSets = append(ex.CompletedSets, models.SetRecord{
		SetNumber:     len(ex.CompletedSets) + 1,
		Weight:        weight,
		Reps:          reps,
		Unit:          unit,
		Completed:     true,
		RestStartedAt: &now,
	})
	ex.RefreshCompletion()

	if ex.IsCompleted {
		m.session.CurrentSetIndex = 0
		if next := m.nextIncomplete(idx); next >= 0 {
			m.session.CurrentExerciseIndex = next
			m.session.CurrentSetIndex = len(m.session.Exercises[next].CompletedSets)
		}
	} else {
		m.session.CurrentSetIndex = len(ex.CompletedSets)
	}

	m.persist()
	return true, nil
}

// UpdateSet edits a completed set in place.
func (m *Manager) UpdateSet(e, s int, weight float64, reps int, unit models.Unit) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return false, err
	}
	ex, err := m.set(e, s)
	if err != nil {
		return false, err
	}
	if !validSet(ex, weight, reps, unit) {
		return false, nil
	}

	set := &ex.CompletedSets[s]
	set.Weight, set.Reps, set.Unit = weight, reps, unit

	m.persist()
	return true, nil
}

// DeleteSet removes a set, renumbers the rest and lowers the exercise's
// target by one, never below one.
func (m *Manager) DeleteSet(e, s int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	ex, err := m.set(e, s)
	if err != nil {
		return err
	}

	ex.CompletedSets = slices.Delete(ex.CompletedSets, s, s+1)
	ex.Renumber()
	ex.TargetSets = max(1, ex.TargetSets-1)
	ex.RefreshCompletion()
	m.syncCursor()

	m.persist()
	return nil
}

// AddSet raises the target of an exercise by one.
func (m *Manager) AddSet(e int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	ex, err := m.exercise(e)
	if err != nil {
		return err
	}

	ex.TargetSets++
	ex.RefreshCompletion()
	m.syncCursor()

	m.persist()
	return nil
}

// AddExerciseOptions controls where AddExercise inserts.
type AddExerciseOptions struct {
	// Position is the index to insert at; nil appends.
	Position *int
}

// AddExercise adds an exercise to the live session.
func (m *Manager) AddExercise(ref models.TemplateExercise, opts AddExerciseOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	if ref.ExerciseID == "" {
		return fmt.Errorf("exercise id is required: %w", ErrInvalidExercise)
	}

	n := len(m.session.Exercises)
	pos := n
	if opts.Position != nil {
		pos = *opts.Position
		if pos < 0 || pos > n {
			return fmt.Errorf("position %d of %d: %w", pos, n, ErrIndexOutOfRange)
		}
	}

	m.session.Exercises = slices.Insert(m.session.Exercises, pos, newExercise(ref))
	if n > 0 && pos <= m.session.CurrentExerciseIndex {
		m.session.CurrentExerciseIndex++
	}
	m.syncCursor()

	m.persist()
	return nil
}

// DeleteExercise removes an exercise and its sets.
func (m *Manager) DeleteExercise(e int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	if _, err := m.exercise(e); err != nil {
		return err
	}

	m.session.Exercises = slices.Delete(m.session.Exercises, e, e+1)
	if e < m.session.CurrentExerciseIndex {
		m.session.CurrentExerciseIndex--
	}
	m.syncCursor()

	m.persist()
	return nil
}

// AddRest adds a finished rest period to the session total.
func (m *Manager) AddRest(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	m.session.TotalRestSeconds += d.Seconds()

	m.persist()
	return nil
}

// WouldDiscardProgress reports whether cancelling would throw away completed sets.
func (m *Manager) WouldDiscardProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive && m.session.CompletedSetCount() > 0
}

// Finish closes the workout: it stores the session in history, records the
// best set of every exercise as a lift and clears the active slot, all in one
// transaction. On error nothing is written and the session stays active.
func (m *Manager) Finish(ctx context.Context) (models.WorkoutSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return models.WorkoutSummary{}, err
	}
	if err := m.writer.flush(ctx); err != nil {
		m.log.Warn("flushing session before finish", "error", err)
	}

	finishedAt := m.now()
	done := m.session.Clone()
	done.IsCompleted = true
	rec := models.WorkoutRecord{
		Session:    *done,
		FinishedAt: finishedAt,
		Summary: models.WorkoutSummary{
			DurationMinutes: finishedAt.Sub(done.StartedAt).Minutes(),
			TotalSets:       done.CompletedSetCount(),
			TotalVolume:     done.TotalVolume(),
		},
	}

	err := m.store.InTx(ctx, func(tx storage.Store) error {
		if err := m.recorder.RecordWorkout(ctx, tx, &rec); err != nil {
			return err
		}
		return tx.ClearActiveSession(ctx)
	})
	if err != nil {
		return models.WorkoutSummary{}, fmt.Errorf("finishing workout %s: %w", done.ID, err)
	}

	m.session = nil
	m.state = StateCompleted
	m.log.Info("workout finished",
		"session", done.ID,
		"sets", rec.Summary.TotalSets,
		"volume", rec.Summary.TotalVolume,
		"personal_records", rec.Summary.PersonalRecordCount,
	)

	if m.notifier != nil {
		go m.notifier.WorkoutFinished(rec)
	}
	return rec.Summary, nil
}

// Cancel discards the active workout without recording anything. It does
// nothing unless confirmed; discarded reports whether completed sets were lost.
func (m *Manager) Cancel(ctx context.Context, confirmed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireActive(); err != nil {
		return false, err
	}
	discarded := m.session.CompletedSetCount() > 0
	if !confirmed {
		return false, ErrConfirmationRequired
	}

	if err := m.writer.flush(ctx); err != nil {
		m.log.Warn("flushing session before cancel", "error", err)
	}
	if err := m.store.ClearActiveSession(ctx); err != nil {
		return false, fmt.Errorf("cancelling workout %s: %w", m.session.ID, err)
	}

	m.log.Info("workout cancelled", "session", m.session.ID, "discarded_sets", m.session.CompletedSetCount())
	m.session = nil
	m.state = StateCancelled
	return discarded, nil
}
