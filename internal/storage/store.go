package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/ironlog/internal/models"
)

// Keys of the single-slot rows in kv_slots.
const (
	slotActiveSession = "active_session"
	slotRestTimer     = "rest_timer"
)

var (
	// ErrNotFound is returned by lookups of a single record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a workout is already in history.
	ErrAlreadyExists = errors.New("already exists")
)

// Store is the persistence contract of the workout core. Implementations
// must make InTx atomic: either every write inside fn is committed or none.
type Store interface {
	LoadActiveSession(ctx context.Context) (*models.WorkoutSession, error)
	SaveActiveSession(ctx context.Context, s *models.WorkoutSession) error
	ClearActiveSession(ctx context.Context) error

	AppendWorkoutHistory(ctx context.Context, rec models.WorkoutRecord) error
	ListWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error)
	ListUnsyncedWorkouts(ctx context.Context) ([]models.WorkoutRecord, error)
	MarkWorkoutSynced(ctx context.Context, sessionID string) error

	AppendLift(ctx context.Context, lift models.HistoricalLift) error
	ListLifts(ctx context.Context, exerciseID string) ([]models.HistoricalLift, error)

	LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error)
	SaveExerciseProgress(ctx context.Context, p models.ExerciseProgress) error
	ListExerciseProgress(ctx context.Context) ([]models.ExerciseProgress, error)

	LoadRestTimer(ctx context.Context) (*models.RestTimerState, error)
	SaveRestTimer(ctx context.Context, t models.RestTimerState) error
	ClearRestTimer(ctx context.Context) error

	// InTx runs fn against a Store bound to one transaction. Calling InTx on
	// a Store that is already transactional runs fn in the same transaction.
	InTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

func decodeSlot[T any](data []byte, name string) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return &v, nil
}
