package mcp

import (
	"context"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both storage backends
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	LoadActiveSession(ctx context.Context) (*models.WorkoutSession, error)
	ListWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error)
	ListLifts(ctx context.Context, exerciseID string) ([]models.HistoricalLift, error)
	LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error)
	ListExerciseProgress(ctx context.Context) ([]models.ExerciseProgress, error)
}

// Compile-time checks: both storage backends satisfy DataSource.
var (
	_ DataSource = (*storage.SQLite)(nil)
	_ DataSource = (*storage.DB)(nil)
)
