package models

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the unit a weight was logged in.
type Unit string

const (
	UnitLbs Unit = "lbs"
	UnitKg  Unit = "kg"
)

// CanonicalUnit is the unit personal records and bodyweight are stored in.
const CanonicalUnit = UnitLbs

const lbsPerKg = 2.20462

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitLbs || u == UnitKg
}

// ParseUnit maps common spellings to a Unit. Empty input yields the canonical unit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return CanonicalUnit, nil
	case "lb", "lbs":
		return UnitLbs, nil
	case "kg", "kgs":
		return UnitKg, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// ToCanonical converts weight from unit u to CanonicalUnit.
func ToCanonical(weight float64, u Unit) float64 {
	return Convert(weight, u, CanonicalUnit)
}

// Convert converts weight between units.
func Convert(weight float64, from, to Unit) float64 {
	if from == to || !from.Valid() || !to.Valid() {
		return weight
	}
	if from == UnitKg {
		return weight * lbsPerKg
	}
	return weight / lbsPerKg
}

// HistoricalLift is an append-only record of the best set of an exercise
// in a finished workout.
type HistoricalLift struct {
	ParentSessionID string    `json:"parent_session_id"`
	ExerciseID      string    `json:"exercise_id"`
	Weight          float64   `json:"weight"`
	Reps            int       `json:"reps"`
	Unit            Unit      `json:"unit"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// ExerciseProgress is the derived personal record for one exercise.
// PersonalRecordWeight is in CanonicalUnit and never decreases.
type ExerciseProgress struct {
	ExerciseID           string    `json:"exercise_id"`
	PersonalRecordWeight float64   `json:"personal_record_weight"`
	PercentileRanking    int       `json:"percentile_ranking"`
	LastUpdated          time.Time `json:"last_updated"`
}

// Now returns the current time in UTC at microsecond precision, the finest
// resolution every storage backend round-trips exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// RestTimerState is the persisted rest countdown.
type RestTimerState struct {
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Gender selects a strength standards table.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)
