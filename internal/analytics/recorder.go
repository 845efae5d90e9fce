package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/prediction"
	"github.com/claude/ironlog/internal/standards"
)

// ProgressStore is the subset of storage RecordLift writes through.
type ProgressStore interface {
	AppendLift(ctx context.Context, lift models.HistoricalLift) error
	LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error)
	SaveExerciseProgress(ctx context.Context, p models.ExerciseProgress) error
}

// Profile describes the lifter for percentile ranking.
type Profile struct {
	BodyweightLbs float64
	Gender        models.Gender
	Age           int
}

// Recorder is the only writer of ExerciseProgress.
type Recorder struct {
	table   *standards.Table
	profile Profile
	now     func() time.Time
	log     *slog.Logger
}

// NewRecorder creates a Recorder ranking against table for profile.
func NewRecorder(table *standards.Table, profile Profile, log *slog.Logger) *Recorder {
	return &Recorder{
		table:   table,
		profile: profile,
		now:     models.Now,
		log:     log,
	}
}

// Profile returns the lifter profile used for ranking.
func (r *Recorder) Profile() Profile {
	return r.profile
}

// Percentile ranks a canonical-unit one-rep max for the recorder's profile.
func (r *Recorder) Percentile(oneRepMax float64, category string) int {
	return Percentile(r.table, oneRepMax, r.profile.BodyweightLbs, r.profile.Gender, category, r.profile.Age)
}

// Category returns the standards key of the first candidate name that has a
// standard, or "" when none does.
func (r *Recorder) Category(candidates ...string) string {
	if r.table == nil {
		return ""
	}
	for _, c := range candidates {
		if key := r.table.Resolve(c); key != "" {
			return key
		}
	}
	return ""
}

// RecordLift appends lift to history and replaces the exercise's personal
// record when the lift's estimated one-rep max strictly exceeds it. It
// reports whether a new record was set. category is the standards key used
// for ranking and may be empty.
func (r *Recorder) RecordLift(ctx context.Context, store ProgressStore, lift models.HistoricalLift, category string) (bool, error) {
	if lift.RecordedAt.IsZero() {
		lift.RecordedAt = r.now()
	}
	if err := store.AppendLift(ctx, lift); err != nil {
		return false, fmt.Errorf("appending lift: %w", err)
	}

	orm := EstimateOneRepMax(models.ToCanonical(lift.Weight, lift.Unit), lift.Reps)

	current, err := store.LoadExerciseProgress(ctx, lift.ExerciseID)
	if err != nil {
		return false, fmt.Errorf("loading progress for %s: %w", lift.ExerciseID, err)
	}
	if current != nil && orm <= current.PersonalRecordWeight {
		return false, nil
	}

	progress := models.ExerciseProgress{
		ExerciseID:           lift.ExerciseID,
		PersonalRecordWeight: orm,
		PercentileRanking:    r.Percentile(orm, category),
		LastUpdated:          lift.RecordedAt,
	}
	if err := store.SaveExerciseProgress(ctx, progress); err != nil {
		return false, fmt.Errorf("saving progress for %s: %w", lift.ExerciseID, err)
	}

	r.log.Info("new personal record",
		"exercise", lift.ExerciseID,
		"one_rep_max", orm,
		"percentile", progress.PercentileRanking,
	)
	return true, nil
}

// WorkoutStore is the subset of storage RecordWorkout writes through.
type WorkoutStore interface {
	ProgressStore
	AppendWorkoutHistory(ctx context.Context, rec models.WorkoutRecord) error
}

// RecordWorkout records the best set of every exercise in rec as a lift,
// sets rec's personal record count and appends rec to history. Callers run
// it inside a transaction so a failure part way leaves nothing behind.
func (r *Recorder) RecordWorkout(ctx context.Context, store WorkoutStore, rec *models.WorkoutRecord) error {
	prs := 0
	for _, ex := range rec.Session.Exercises {
		best := BestSet(ex.CompletedSets)
		if best < 0 {
			continue
		}
		set := ex.CompletedSets[best]
		lift := models.HistoricalLift{
			ParentSessionID: rec.Session.ID,
			ExerciseID:      ex.ExerciseID,
			Weight:          set.Weight,
			Reps:            set.Reps,
			Unit:            set.Unit,
			RecordedAt:      rec.FinishedAt,
		}
		category := ex.Category
		if category == "" {
			category = r.Category(ex.ExerciseID, ex.Name)
		}
		pr, err := r.RecordLift(ctx, store, lift, category)
		if err != nil {
			return err
		}
		if pr {
			prs++
		}
	}
	rec.Summary.PersonalRecordCount = prs

	if err := store.AppendWorkoutHistory(ctx, *rec); err != nil {
		return fmt.Errorf("appending workout %s: %w", rec.Session.ID, err)
	}
	return nil
}

// Report is a personal record with its tier placement.
type Report struct {
	models.ExerciseProgress
	Tier    Tier    `json:"tier"`
	NextGap TierGap `json:"next_tier"`
}

// NewReport places progress in the tier table.
func NewReport(p models.ExerciseProgress) Report {
	pct := float64(p.PercentileRanking)
	return Report{
		ExerciseProgress: p,
		Tier:             TierFromPercentile(pct),
		NextGap:          NextTierGap(pct),
	}
}

// Series reduces a lift history to the best estimated one-rep max per
// calendar day (UTC), in canonical units and chronological order.
func Series(lifts []models.HistoricalLift) []prediction.Point {
	best := make(map[time.Time]float64)
	for _, l := range lifts {
		day := l.RecordedAt.UTC().Truncate(24 * time.Hour)
		orm := EstimateOneRepMax(models.ToCanonical(l.Weight, l.Unit), l.Reps)
		if orm > best[day] {
			best[day] = orm
		}
	}

	points := make([]prediction.Point, 0, len(best))
	for day, v := range best {
		points = append(points, prediction.Point{At: day, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}
