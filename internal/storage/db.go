package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the PostgreSQL Store, used when several devices share one server.
type DB struct {
	Pool *pgxpool.Pool
	q    pgQuerier
	tx   pgx.Tx
}

var _ Store = (*DB)(nil)

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool, q: pool}, nil
}

// Close closes the connection pool. It is a no-op on a transaction-bound DB.
func (db *DB) Close() error {
	if db.tx == nil {
		db.Pool.Close()
	}
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// InTx runs fn inside a single PostgreSQL transaction.
func (db *DB) InTx(ctx context.Context, fn func(Store) error) error {
	if db.tx != nil {
		return fn(db)
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&DB{Pool: db.Pool, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (db *DB) loadSlot(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.q.QueryRow(ctx, `SELECT value FROM kv_slots WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	return value, nil
}

func (db *DB) saveSlot(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = db.q.Exec(ctx,
		`INSERT INTO kv_slots (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, data)
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (db *DB) clearSlot(ctx context.Context, key string) error {
	if _, err := db.q.Exec(ctx, `DELETE FROM kv_slots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("clearing %s: %w", key, err)
	}
	return nil
}

// LoadActiveSession returns the persisted active session, or nil if there is none.
func (db *DB) LoadActiveSession(ctx context.Context) (*models.WorkoutSession, error) {
	data, err := db.loadSlot(ctx, slotActiveSession)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSlot[models.WorkoutSession](data, slotActiveSession)
}

func (db *DB) SaveActiveSession(ctx context.Context, s *models.WorkoutSession) error {
	return db.saveSlot(ctx, slotActiveSession, s)
}

func (db *DB) ClearActiveSession(ctx context.Context) error {
	return db.clearSlot(ctx, slotActiveSession)
}

// LoadRestTimer returns the persisted rest timer, or nil if none is running.
func (db *DB) LoadRestTimer(ctx context.Context) (*models.RestTimerState, error) {
	data, err := db.loadSlot(ctx, slotRestTimer)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSlot[models.RestTimerState](data, slotRestTimer)
}

func (db *DB) SaveRestTimer(ctx context.Context, t models.RestTimerState) error {
	return db.saveSlot(ctx, slotRestTimer, t)
}

func (db *DB) ClearRestTimer(ctx context.Context) error {
	return db.clearSlot(ctx, slotRestTimer)
}

// AppendWorkoutHistory stores a finished workout. A session already in
// history is left untouched and ErrAlreadyExists is returned.
func (db *DB) AppendWorkoutHistory(ctx context.Context, rec models.WorkoutRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding workout record: %w", err)
	}
	tag, err := db.q.Exec(ctx,
		`INSERT INTO workout_history (session_id, workout_id, title, started_at, finished_at,
		 duration_minutes, total_sets, total_volume, pr_count, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		rec.Session.ID, rec.Session.WorkoutID, rec.Session.Title,
		rec.Session.StartedAt, rec.FinishedAt,
		rec.Summary.DurationMinutes, rec.Summary.TotalSets, rec.Summary.TotalVolume,
		rec.Summary.PersonalRecordCount, payload)
	if err != nil {
		return fmt.Errorf("inserting workout history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workout %s: %w", rec.Session.ID, ErrAlreadyExists)
	}
	return nil
}

// ListWorkoutHistory returns finished workouts, newest first. limit <= 0 means all.
func (db *DB) ListWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	query := `SELECT payload FROM workout_history ORDER BY finished_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := db.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying workout history: %w", err)
	}
	return collectRecords(rows)
}

// ListUnsyncedWorkouts returns workouts not yet pushed to a remote server, oldest first.
func (db *DB) ListUnsyncedWorkouts(ctx context.Context) ([]models.WorkoutRecord, error) {
	rows, err := db.q.Query(ctx,
		`SELECT payload FROM workout_history WHERE synced_at IS NULL ORDER BY finished_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced workouts: %w", err)
	}
	return collectRecords(rows)
}

func (db *DB) MarkWorkoutSynced(ctx context.Context, sessionID string) error {
	tag, err := db.q.Exec(ctx,
		`UPDATE workout_history SET synced_at = now() WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("marking workout synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workout %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func collectRecords(rows pgx.Rows) ([]models.WorkoutRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkoutRecord, error) {
		var payload []byte
		var rec models.WorkoutRecord
		if err := row.Scan(&payload); err != nil {
			return rec, err
		}
		err := json.Unmarshal(payload, &rec)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading workout records: %w", err)
	}
	return records, nil
}

func (db *DB) AppendLift(ctx context.Context, l models.HistoricalLift) error {
	_, err := db.q.Exec(ctx,
		`INSERT INTO lifts (session_id, exercise_id, weight, reps, unit, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ParentSessionID, l.ExerciseID, l.Weight, l.Reps, string(l.Unit), l.RecordedAt)
	if err != nil {
		return fmt.Errorf("inserting lift: %w", err)
	}
	return nil
}

// ListLifts returns the lift history of one exercise, oldest first.
func (db *DB) ListLifts(ctx context.Context, exerciseID string) ([]models.HistoricalLift, error) {
	rows, err := db.q.Query(ctx,
		`SELECT session_id, exercise_id, weight, reps, unit, recorded_at
		 FROM lifts WHERE exercise_id = $1 ORDER BY recorded_at ASC, id ASC`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying lifts: %w", err)
	}
	defer rows.Close()

	var result []models.HistoricalLift
	for rows.Next() {
		var l models.HistoricalLift
		var unit string
		var recordedAt time.Time
		if err := rows.Scan(&l.ParentSessionID, &l.ExerciseID, &l.Weight, &l.Reps, &unit, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning lift: %w", err)
		}
		l.Unit = models.Unit(unit)
		l.RecordedAt = recordedAt.UTC()
		result = append(result, l)
	}
	return result, rows.Err()
}

func (db *DB) LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error) {
	var p models.ExerciseProgress
	err := db.q.QueryRow(ctx,
		`SELECT exercise_id, pr_weight, percentile, last_updated
		 FROM exercise_progress WHERE exercise_id = $1`, exerciseID).
		Scan(&p.ExerciseID, &p.PersonalRecordWeight, &p.PercentileRanking, &p.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying exercise progress: %w", err)
	}
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}

func (db *DB) SaveExerciseProgress(ctx context.Context, p models.ExerciseProgress) error {
	_, err := db.q.Exec(ctx,
		`INSERT INTO exercise_progress (exercise_id, pr_weight, percentile, last_updated)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exercise_id) DO UPDATE SET
		   pr_weight = EXCLUDED.pr_weight,
		   percentile = EXCLUDED.percentile,
		   last_updated = EXCLUDED.last_updated`,
		p.ExerciseID, p.PersonalRecordWeight, p.PercentileRanking, p.LastUpdated)
	if err != nil {
		return fmt.Errorf("saving exercise progress: %w", err)
	}
	return nil
}

func (db *DB) ListExerciseProgress(ctx context.Context) ([]models.ExerciseProgress, error) {
	rows, err := db.q.Query(ctx,
		`SELECT exercise_id, pr_weight, percentile, last_updated
		 FROM exercise_progress ORDER BY exercise_id`)
	if err != nil {
		return nil, fmt.Errorf("querying exercise progress: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseProgress
	for rows.Next() {
		var p models.ExerciseProgress
		if err := rows.Scan(&p.ExerciseID, &p.PersonalRecordWeight, &p.PercentileRanking, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("scanning exercise progress: %w", err)
		}
		p.LastUpdated = p.LastUpdated.UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}
