package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/standards"
)

func testTable(t *testing.T) *standards.Table {
	t.Helper()
	tbl, err := standards.Default()
	if err != nil {
		t.Fatalf("standards.Default: %v", err)
	}
	return tbl
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory WorkoutStore.
type memStore struct {
	lifts    []models.HistoricalLift
	progress map[string]models.ExerciseProgress
	history  []models.WorkoutRecord
	saveErr  error
}

func (m *memStore) AppendWorkoutHistory(_ context.Context, rec models.WorkoutRecord) error {
	m.history = append(m.history, rec)
	return nil
}

func newMemStore() *memStore {
	return &memStore{progress: map[string]models.ExerciseProgress{}}
}

func (m *memStore) AppendLift(_ context.Context, l models.HistoricalLift) error {
	m.lifts = append(m.lifts, l)
	return nil
}

func (m *memStore) LoadExerciseProgress(_ context.Context, id string) (*models.ExerciseProgress, error) {
	p, ok := m.progress[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) SaveExerciseProgress(_ context.Context, p models.ExerciseProgress) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.progress[p.ExerciseID] = p
	return nil
}

// TestEstimateOneRepMax verifies the Epley estimate and the single-rep identity.
func TestEstimateOneRepMax(t *testing.T) {
	tests := []struct {
		weight float64
		reps   int
		want   float64
	}{
		{225, 1, 225},
		{225, 5, 262.5},
		{135, 8, 171},
		{100, 30, 200},
		{100, 0, 0},
		{100, -2, 0},
	}
	for _, tt := range tests {
		got := EstimateOneRepMax(tt.weight, tt.reps)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateOneRepMax(%v, %d) = %v, want %v", tt.weight, tt.reps, got, tt.want)
		}
	}

	// Property: for every reps > 1 the result equals w*(1+r/30).
	for reps := 2; reps <= 20; reps++ {
		for _, w := range []float64{0, 45, 102.5, 315} {
			if got, want := EstimateOneRepMax(w, reps), w*(1+float64(reps)/30); got != want {
				t.Errorf("EstimateOneRepMax(%v, %d) = %v, want %v", w, reps, got, want)
			}
		}
	}
}

// TestPercentile verifies interpolation between standards anchors.
func TestPercentile(t *testing.T) {
	tbl := testTable(t)
	tests := []struct {
		name string
		orm  float64
		bw   float64
		key  string
		age  int
		want int
	}{
		{"at advanced", 250, 200, "bench_press", 30, 70},
		{"at elite", 300, 200, "bench_press", 30, 85},
		{"between proficient and advanced", 225, 200, "bench_press", 30, 59},
		{"beyond superior", 500, 200, "bench_press", 30, 100},
		{"age adjusted", 250, 200, "bench_press", 41, 74},
		{"unknown exercise", 250, 200, "cable_fly", 30, 0},
		{"empty key", 250, 200, "", 30, 0},
		{"zero bodyweight", 250, 0, "bench_press", 30, 0},
		{"zero lift", 0, 200, "bench_press", 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tbl, tt.orm, tt.bw, models.GenderMale, tt.key, tt.age)
			if got != tt.want {
				t.Errorf("Percentile = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestPercentileMonotonic verifies a heavier lift never ranks lower.
func TestPercentileMonotonic(t *testing.T) {
	tbl := testTable(t)
	prev := 0
	for orm := 0.0; orm <= 600; orm += 2.5 {
		p := Percentile(tbl, orm, 180, models.GenderFemale, "squat", 28)
		if p < prev {
			t.Fatalf("percentile dropped from %d to %d at %v", prev, p, orm)
		}
		if p < 0 || p > 100 {
			t.Fatalf("percentile %d out of range", p)
		}
		prev = p
	}
}

// TestTierFromPercentileBoundaries checks every threshold edge of the step function.
func TestTierFromPercentileBoundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{-1, "Beginner"},
		{0, "Beginner"},
		{5.999, "Beginner"},
		{6, "Novice"},
		{6.001, "Novice"},
		{22.999, "Novice"},
		{23, "Intermediate"},
		{46.999, "Intermediate"},
		{47, "Proficient"},
		{69.999, "Proficient"},
		{70, "Advanced"},
		{84.999, "Advanced"},
		{85, "Elite"},
		{100, "Elite"},
	}
	for _, tt := range tests {
		if got := TierFromPercentile(tt.p); got.Name != tt.want {
			t.Errorf("TierFromPercentile(%v) = %s, want %s", tt.p, got.Name, tt.want)
		}
	}
}

// TestTiersOrdered verifies the tier table is strictly ascending from zero.
func TestTiersOrdered(t *testing.T) {
	ts := Tiers()
	if len(ts) != 6 {
		t.Fatalf("tiers = %d, want 6", len(ts))
	}
	if ts[0].Threshold != 0 {
		t.Errorf("first threshold = %v, want 0", ts[0].Threshold)
	}
	for i := 1; i < len(ts); i++ {
		if ts[i].Threshold <= ts[i-1].Threshold {
			t.Errorf("tier %s not above %s", ts[i].Name, ts[i-1].Name)
		}
	}
}

// TestNextTierGap verifies the gap to the next threshold and the max-tier sentinel.
func TestNextTierGap(t *testing.T) {
	tests := []struct {
		p    float64
		want TierGap
	}{
		{0, TierGap{Tier: "Novice", PointsNeeded: 6}},
		{5, TierGap{Tier: "Novice", PointsNeeded: 1}},
		{6, TierGap{Tier: "Intermediate", PointsNeeded: 17}},
		{70, TierGap{Tier: "Elite", PointsNeeded: 15}},
		{84, TierGap{Tier: "Elite", PointsNeeded: 1}},
		{85, TierGap{MaxTier: true}},
		{99, TierGap{MaxTier: true}},
	}
	for _, tt := range tests {
		if got := NextTierGap(tt.p); got != tt.want {
			t.Errorf("NextTierGap(%v) = %+v, want %+v", tt.p, got, tt.want)
		}
	}
}

// TestBestSet verifies the set with the highest estimated max wins, across units.
func TestBestSet(t *testing.T) {
	sets := []models.SetRecord{
		{SetNumber: 1, Weight: 135, Reps: 8, Unit: models.UnitLbs},
		{SetNumber: 2, Weight: 155, Reps: 5, Unit: models.UnitLbs},
		{SetNumber: 3, Weight: 70, Reps: 6, Unit: models.UnitKg}, // ~185 lbs estimated
		{SetNumber: 4, Weight: 155, Reps: 5, Unit: models.UnitLbs},
	}
	if got := BestSet(sets); got != 2 {
		t.Errorf("BestSet = %d, want 2", got)
	}
	if got := BestSet(sets[:2]); got != 1 {
		t.Errorf("BestSet(first two) = %d, want 1", got)
	}
	if got := BestSet(nil); got != -1 {
		t.Errorf("BestSet(nil) = %d, want -1", got)
	}
	equal := []models.SetRecord{
		{SetNumber: 1, Weight: 135, Reps: 8, Unit: models.UnitLbs},
		{SetNumber: 2, Weight: 135, Reps: 8, Unit: models.UnitLbs},
	}
	if got := BestSet(equal); got != 0 {
		t.Errorf("BestSet(ties) = %d, want 0", got)
	}
}

// TestRecordLiftFirstLiftIsRecord verifies a first lift creates the record.
func TestRecordLiftFirstLiftIsRecord(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(testTable(t), Profile{BodyweightLbs: 200, Gender: models.GenderMale, Age: 30}, discardLogger())

	isPR, err := r.RecordLift(context.Background(), store, models.HistoricalLift{
		ParentSessionID: "s1", ExerciseID: "bench", Weight: 225, Reps: 5, Unit: models.UnitLbs,
	}, "bench_press")
	if err != nil {
		t.Fatalf("RecordLift: %v", err)
	}
	if !isPR {
		t.Error("expected new PR")
	}
	p := store.progress["bench"]
	if math.Abs(p.PersonalRecordWeight-262.5) > 1e-9 {
		t.Errorf("PR = %v, want 262.5", p.PersonalRecordWeight)
	}
	if p.PercentileRanking <= 0 {
		t.Errorf("percentile = %d, want > 0", p.PercentileRanking)
	}
	if len(store.lifts) != 1 || store.lifts[0].RecordedAt.IsZero() {
		t.Errorf("lift not appended with timestamp: %+v", store.lifts)
	}
}

// TestRecordLiftMonotonic verifies the stored record never decreases over a sequence of lifts.
func TestRecordLiftMonotonic(t *testing.T) {
	store := newMemStore()
	r := NewRecorder(testTable(t), Profile{BodyweightLbs: 180, Gender: models.GenderFemale}, discardLogger())
	ctx := context.Background()

	lifts := []struct {
		weight float64
		reps   int
		unit   models.Unit
		wantPR bool
	}{
		{100, 5, models.UnitLbs, true},
		{90, 5, models.UnitLbs, false},
		{100, 5, models.UnitLbs, false}, // equal is not a record
		{50, 5, models.UnitKg, true},    // 110 lbs
		{140, 1, models.UnitLbs, true},
		{60, 10, models.UnitLbs, false},
	}
	prev := 0.0
	for i, l := range lifts {
		isPR, err := r.RecordLift(ctx, store, models.HistoricalLift{
			ExerciseID: "squat", Weight: l.weight, Reps: l.reps, Unit: l.unit,
			RecordedAt: time.Date(2026, 3, i+1, 0, 0, 0, 0, time.UTC),
		}, "squat")
		if err != nil {
			t.Fatalf("lift %d: %v", i, err)
		}
		if isPR != l.wantPR {
			t.Errorf("lift %d: isPR = %v, want %v", i, isPR, l.wantPR)
		}
		cur := store.progress["squat"].PersonalRecordWeight
		if cur < prev {
			t.Fatalf("lift %d: PR decreased from %v to %v", i, prev, cur)
		}
		prev = cur
	}
	if len(store.lifts) != len(lifts) {
		t.Errorf("lifts appended = %d, want %d", len(store.lifts), len(lifts))
	}
}

// TestRecordLiftSaveError verifies a storage failure surfaces and reports no record.
func TestRecordLiftSaveError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	r := NewRecorder(testTable(t), Profile{}, discardLogger())

	isPR, err := r.RecordLift(context.Background(), store, models.HistoricalLift{
		ExerciseID: "row", Weight: 100, Reps: 5, Unit: models.UnitLbs,
	}, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if isPR {
		t.Error("isPR = true on failure")
	}
}

// TestSeriesBestPerDay verifies lifts collapse to one best estimate per day in order.
func TestSeriesBestPerDay(t *testing.T) {
	d1 := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 2, 8, 18, 0, 0, 0, time.UTC)
	lifts := []models.HistoricalLift{
		{ExerciseID: "x", Weight: 200, Reps: 1, Unit: models.UnitLbs, RecordedAt: d2},
		{ExerciseID: "x", Weight: 100, Reps: 1, Unit: models.UnitLbs, RecordedAt: d1},
		{ExerciseID: "x", Weight: 150, Reps: 1, Unit: models.UnitLbs, RecordedAt: d1.Add(2 * time.Hour)},
	}
	got := Series(lifts)
	if len(got) != 2 {
		t.Fatalf("points = %d, want 2", len(got))
	}
	if got[0].Value != 150 || got[1].Value != 200 {
		t.Errorf("values = %v, %v; want 150, 200", got[0].Value, got[1].Value)
	}
	if !got[0].At.Before(got[1].At) {
		t.Error("series not chronological")
	}
}

// TestNewReport verifies tier placement for a stored record.
func TestNewReport(t *testing.T) {
	rep := NewReport(models.ExerciseProgress{ExerciseID: "bench", PercentileRanking: 72})
	if rep.Tier.Name != "Advanced" {
		t.Errorf("tier = %s, want Advanced", rep.Tier.Name)
	}
	if rep.NextGap.Tier != "Elite" || rep.NextGap.PointsNeeded != 13 {
		t.Errorf("next gap = %+v", rep.NextGap)
	}
}

// TestRecordWorkout verifies one lift per exercise with sets, the PR count
// and the appended history record.
func TestRecordWorkout(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.progress["squat"] = models.ExerciseProgress{ExerciseID: "squat", PersonalRecordWeight: 500}
	r := NewRecorder(testTable(t), Profile{BodyweightLbs: 180, Gender: models.GenderMale}, discardLogger())

	finished := time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)
	rec := models.WorkoutRecord{
		Session: models.WorkoutSession{
			ID: "s1",
			Exercises: []models.ExerciseSession{
				{ExerciseID: "Bench Press", CompletedSets: []models.SetRecord{
					{SetNumber: 1, Weight: 185, Reps: 5, Unit: models.UnitLbs},
					{SetNumber: 2, Weight: 100, Reps: 3, Unit: models.UnitKg},
				}},
				{ExerciseID: "squat", CompletedSets: []models.SetRecord{
					{SetNumber: 1, Weight: 225, Reps: 5, Unit: models.UnitLbs},
				}},
				{ExerciseID: "plank", CompletedSets: []models.SetRecord{}},
			},
		},
		FinishedAt: finished,
	}

	if err := r.RecordWorkout(ctx, store, &rec); err != nil {
		t.Fatalf("RecordWorkout: %v", err)
	}
	if rec.Summary.PersonalRecordCount != 1 {
		t.Errorf("PersonalRecordCount = %d, want 1", rec.Summary.PersonalRecordCount)
	}
	if len(store.lifts) != 2 {
		t.Fatalf("lifts = %+v, want 2", store.lifts)
	}
	if l := store.lifts[0]; l.Weight != 100 || l.Unit != models.UnitKg || !l.RecordedAt.Equal(finished) {
		t.Errorf("bench best set = %+v, want 100 kg x3", l)
	}
	if p := store.progress["Bench Press"]; p.PercentileRanking == 0 {
		t.Error("bench press should resolve to a standard through its name")
	}
	if len(store.history) != 1 || store.history[0].Summary.PersonalRecordCount != 1 {
		t.Errorf("history = %+v", store.history)
	}
}
