package models

import "time"

// SetRecord is a single completed set within an exercise.
type SetRecord struct {
	SetNumber     int        `json:"set_number"`
	Weight        float64    `json:"weight"`
	Reps          int        `json:"reps"`
	Unit          Unit       `json:"unit"`
	Completed     bool       `json:"completed"`
	RestStartedAt *time.Time `json:"rest_started_at,omitempty"`
}

// ExerciseSession is one exercise of a live workout and the sets done so far.
type ExerciseSession struct {
	ExerciseID    string      `json:"exercise_id"`
	Name          string      `json:"name,omitempty"`
	Category      string      `json:"category,omitempty"`
	TargetSets    int         `json:"target_sets"`
	TargetReps    string      `json:"target_reps"`
	Bodyweight    bool        `json:"bodyweight,omitempty"`
	CompletedSets []SetRecord `json:"completed_sets"`
	IsCompleted   bool        `json:"is_completed"`
}

// RefreshCompletion recomputes IsCompleted from the set count and target.
func (e *ExerciseSession) RefreshCompletion() {
	e.IsCompleted = len(e.CompletedSets) >= e.TargetSets
}

// Renumber rewrites SetNumber so that sets are numbered 1..n in list order.
func (e *ExerciseSession) Renumber() {
	for i := range e.CompletedSets {
		e.CompletedSets[i].SetNumber = i + 1
	}
}

// WorkoutSession is the in-progress workout. At most one is active at a time.
type WorkoutSession struct {
	ID                   string            `json:"id"`
	WorkoutID            string            `json:"workout_id"`
	Title                string            `json:"title"`
	Exercises            []ExerciseSession `json:"exercises"`
	StartedAt            time.Time         `json:"started_at"`
	CurrentExerciseIndex int               `json:"current_exercise_index"`
	CurrentSetIndex      int               `json:"current_set_index"`
	IsCompleted          bool              `json:"is_completed"`
	TotalRestSeconds     float64           `json:"total_rest_seconds"`
}

// Clone returns a deep copy of the session.
func (s *WorkoutSession) Clone() *WorkoutSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Exercises = make([]ExerciseSession, len(s.Exercises))
	for i, ex := range s.Exercises {
		ex.CompletedSets = append([]SetRecord(nil), ex.CompletedSets...)
		for j, set := range ex.CompletedSets {
			if set.RestStartedAt != nil {
				t := *set.RestStartedAt
				ex.CompletedSets[j].RestStartedAt = &t
			}
		}
		if ex.CompletedSets == nil {
			ex.CompletedSets = []SetRecord{}
		}
		c.Exercises[i] = ex
	}
	return &c
}

// CompletedSetCount returns the number of sets done across all exercises.
func (s *WorkoutSession) CompletedSetCount() int {
	n := 0
	for _, ex := range s.Exercises {
		n += len(ex.CompletedSets)
	}
	return n
}

// TotalVolume returns the sum of weight x reps over every completed set,
// in the unit each set was logged in.
func (s *WorkoutSession) TotalVolume() float64 {
	var v float64
	for _, ex := range s.Exercises {
		for _, set := range ex.CompletedSets {
			v += set.Weight * float64(set.Reps)
		}
	}
	return v
}

// WorkoutTemplate is the plan a session is built from.
type WorkoutTemplate struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Exercises []TemplateExercise `json:"exercises"`
}

// TemplateExercise describes one planned exercise.
type TemplateExercise struct {
	ExerciseID string `json:"exercise_id"`
	Name       string `json:"name,omitempty"`
	Category   string `json:"category,omitempty"`
	TargetSets int    `json:"target_sets"`
	TargetReps string `json:"target_reps"`
	Bodyweight bool   `json:"bodyweight,omitempty"`
}

// WorkoutSummary is returned when a workout is finished.
type WorkoutSummary struct {
	DurationMinutes     float64 `json:"duration_minutes"`
	TotalSets           int     `json:"total_sets"`
	TotalVolume         float64 `json:"total_volume"`
	PersonalRecordCount int     `json:"personal_record_count"`
}

// WorkoutRecord is a finished workout as stored in history.
type WorkoutRecord struct {
	Session    WorkoutSession `json:"session"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    WorkoutSummary `json:"summary"`
}
