package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/ironlog/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_slots (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workout_history (
	session_id       TEXT PRIMARY KEY,
	workout_id       TEXT NOT NULL,
	title            TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	finished_at      TEXT NOT NULL,
	duration_minutes REAL NOT NULL,
	total_sets       INTEGER NOT NULL,
	total_volume     REAL NOT NULL,
	pr_count         INTEGER NOT NULL,
	payload          TEXT NOT NULL,
	synced_at        TEXT
);

CREATE TABLE IF NOT EXISTS lifts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	exercise_id TEXT NOT NULL,
	weight      REAL NOT NULL,
	reps        INTEGER NOT NULL,
	unit        TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS lifts_exercise_idx ON lifts (exercise_id, recorded_at);

CREATE TABLE IF NOT EXISTS exercise_progress (
	exercise_id  TEXT PRIMARY KEY,
	pr_weight    REAL NOT NULL,
	percentile   INTEGER NOT NULL,
	last_updated TEXT NOT NULL
);
`

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is the local Store backed by a single SQLite file.
type SQLite struct {
	db   *sql.DB
	q    sqlQuerier
	inTx bool
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection serializes writers; transactions hold it until commit.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, q: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// InTx runs fn inside a single SQLite transaction.
func (s *SQLite) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&SQLite{db: s.db, q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func (s *SQLite) loadSlot(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.q.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLite) saveSlot(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) clearSlot(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM kv_slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clearing %s: %w", key, err)
	}
	return nil
}

// LoadActiveSession returns the persisted active session, or nil if there is none.
func (s *SQLite) LoadActiveSession(ctx context.Context) (*models.WorkoutSession, error) {
	data, err := s.loadSlot(ctx, slotActiveSession)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSlot[models.WorkoutSession](data, slotActiveSession)
}

// SaveActiveSession overwrites the active session slot.
func (s *SQLite) SaveActiveSession(ctx context.Context, ws *models.WorkoutSession) error {
	return s.saveSlot(ctx, slotActiveSession, ws)
}

// ClearActiveSession empties the active session slot.
func (s *SQLite) ClearActiveSession(ctx context.Context) error {
	return s.clearSlot(ctx, slotActiveSession)
}

// LoadRestTimer returns the persisted rest timer, or nil if none is running.
func (s *SQLite) LoadRestTimer(ctx context.Context) (*models.RestTimerState, error) {
	data, err := s.loadSlot(ctx, slotRestTimer)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSlot[models.RestTimerState](data, slotRestTimer)
}

// SaveRestTimer overwrites the rest timer slot.
func (s *SQLite) SaveRestTimer(ctx context.Context, t models.RestTimerState) error {
	return s.saveSlot(ctx, slotRestTimer, t)
}

// ClearRestTimer empties the rest timer slot.
func (s *SQLite) ClearRestTimer(ctx context.Context) error {
	return s.clearSlot(ctx, slotRestTimer)
}

// AppendWorkoutHistory stores a finished workout. A session already in
// history is left untouched and ErrAlreadyExists is returned.
func (s *SQLite) AppendWorkoutHistory(ctx context.Context, rec models.WorkoutRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding workout record: %w", err)
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO workout_history (session_id, workout_id, title, started_at, finished_at,
		 duration_minutes, total_sets, total_volume, pr_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		rec.Session.ID, rec.Session.WorkoutID, rec.Session.Title,
		formatTime(rec.Session.StartedAt), formatTime(rec.FinishedAt),
		rec.Summary.DurationMinutes, rec.Summary.TotalSets, rec.Summary.TotalVolume,
		rec.Summary.PersonalRecordCount, string(payload))
	if err != nil {
		return fmt.Errorf("inserting workout history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workout %s: %w", rec.Session.ID, ErrAlreadyExists)
	}
	return nil
}

// ListWorkoutHistory returns finished workouts, newest first. limit <= 0 means all.
func (s *SQLite) ListWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT payload FROM workout_history ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workout history: %w", err)
	}
	return scanRecords(rows)
}

// ListUnsyncedWorkouts returns finished workouts not yet pushed to a remote server, oldest first.
func (s *SQLite) ListUnsyncedWorkouts(ctx context.Context) ([]models.WorkoutRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT payload FROM workout_history WHERE synced_at IS NULL ORDER BY finished_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying unsynced workouts: %w", err)
	}
	return scanRecords(rows)
}

// MarkWorkoutSynced records that a workout reached the remote server.
func (s *SQLite) MarkWorkoutSynced(ctx context.Context, sessionID string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE workout_history SET synced_at = ? WHERE session_id = ?`,
		formatTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("marking workout synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workout %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]models.WorkoutRecord, error) {
	defer rows.Close()

	var result []models.WorkoutRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning workout record: %w", err)
		}
		var rec models.WorkoutRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decoding workout record: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// AppendLift appends a lift to the history.
func (s *SQLite) AppendLift(ctx context.Context, l models.HistoricalLift) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO lifts (session_id, exercise_id, weight, reps, unit, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ParentSessionID, l.ExerciseID, l.Weight, l.Reps, string(l.Unit), formatTime(l.RecordedAt))
	if err != nil {
		return fmt.Errorf("inserting lift: %w", err)
	}
	return nil
}

// ListLifts returns the lift history of one exercise, oldest first.
func (s *SQLite) ListLifts(ctx context.Context, exerciseID string) ([]models.HistoricalLift, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT session_id, exercise_id, weight, reps, unit, recorded_at
		 FROM lifts WHERE exercise_id = ? ORDER BY recorded_at ASC, id ASC`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying lifts: %w", err)
	}
	defer rows.Close()

	var result []models.HistoricalLift
	for rows.Next() {
		var l models.HistoricalLift
		var unit, recordedAt string
		if err := rows.Scan(&l.ParentSessionID, &l.ExerciseID, &l.Weight, &l.Reps, &unit, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning lift: %w", err)
		}
		l.Unit = models.Unit(unit)
		if l.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parsing lift time: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// LoadExerciseProgress returns the stored record for an exercise, or nil.
func (s *SQLite) LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error) {
	var p models.ExerciseProgress
	var lastUpdated string
	err := s.q.QueryRowContext(ctx,
		`SELECT exercise_id, pr_weight, percentile, last_updated
		 FROM exercise_progress WHERE exercise_id = ?`, exerciseID).
		Scan(&p.ExerciseID, &p.PersonalRecordWeight, &p.PercentileRanking, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying exercise progress: %w", err)
	}
	if p.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("parsing progress time: %w", err)
	}
	return &p, nil
}

// SaveExerciseProgress upserts the record for an exercise.
func (s *SQLite) SaveExerciseProgress(ctx context.Context, p models.ExerciseProgress) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO exercise_progress (exercise_id, pr_weight, percentile, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(exercise_id) DO UPDATE SET
		   pr_weight = excluded.pr_weight,
		   percentile = excluded.percentile,
		   last_updated = excluded.last_updated`,
		p.ExerciseID, p.PersonalRecordWeight, p.PercentileRanking, formatTime(p.LastUpdated))
	if err != nil {
		return fmt.Errorf("saving exercise progress: %w", err)
	}
	return nil
}

// ListExerciseProgress returns every stored record ordered by exercise.
func (s *SQLite) ListExerciseProgress(ctx context.Context) ([]models.ExerciseProgress, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT exercise_id, pr_weight, percentile, last_updated
		 FROM exercise_progress ORDER BY exercise_id`)
	if err != nil {
		return nil, fmt.Errorf("querying exercise progress: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseProgress
	for rows.Next() {
		var p models.ExerciseProgress
		var lastUpdated string
		if err := rows.Scan(&p.ExerciseID, &p.PersonalRecordWeight, &p.PercentileRanking, &lastUpdated); err != nil {
			return nil, fmt.Errorf("scanning exercise progress: %w", err)
		}
		if p.LastUpdated, err = parseTime(lastUpdated); err != nil {
			return nil, fmt.Errorf("parsing progress time: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
