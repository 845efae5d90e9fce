package alpha

import (
	"strconv"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/standards"
	"github.com/google/uuid"
)

// sessionNamespace seeds the deterministic IDs of imported sessions, so the
// same export imported twice produces the same IDs.
var sessionNamespace = uuid.MustParse("6f1c7a52-3b1e-4c43-9d6a-2f0e8a7b9c11")

// Categorizer maps an exercise name to a standards key, or "" when the
// exercise has none.
type Categorizer func(name string) string

// Convert turns an exported session into a finished workout record.
// Warm-up sets are dropped and weights stay in kilograms. For
// bodyweight-plus sets only the added load is recorded.
func Convert(s Session, categorize Categorizer) models.WorkoutRecord {
	started := s.Date.UTC()
	duration := ParseDuration(s.Duration)

	ws := models.WorkoutSession{
		ID:          uuid.NewSHA1(sessionNamespace, []byte(s.Name+"|"+started.Format("2006-01-02T15:04"))).String(),
		WorkoutID:   "alpha:" + slug(s.Name),
		Title:       s.Name,
		StartedAt:   started,
		IsCompleted: true,
		Exercises:   make([]models.ExerciseSession, 0, len(s.Exercises)),
	}

	for _, ex := range s.Exercises {
		category := ""
		if categorize != nil {
			category = categorize(ex.Name)
		}
		id := category
		if id == "" {
			id = slug(ex.Name)
		}

		es := models.ExerciseSession{
			ExerciseID:    id,
			Name:          ex.Name,
			Category:      category,
			TargetReps:    strconv.Itoa(ex.TargetReps),
			Bodyweight:    strings.EqualFold(ex.Equipment, "bodyweight"),
			CompletedSets: []models.SetRecord{},
		}
		for _, set := range ex.WorkingSets() {
			if set.Reps <= 0 {
				continue
			}
			if set.IsBodyweightPlus {
				es.Bodyweight = true
			}
			es.CompletedSets = append(es.CompletedSets, models.SetRecord{
				SetNumber: len(es.CompletedSets) + 1,
				Weight:    set.WeightKg,
				Reps:      set.Reps,
				Unit:      models.UnitKg,
				Completed: true,
			})
		}
		es.TargetSets = max(1, len(es.CompletedSets))
		es.RefreshCompletion()
		ws.Exercises = append(ws.Exercises, es)
	}

	return models.WorkoutRecord{
		Session:    ws,
		FinishedAt: started.Add(duration),
		Summary: models.WorkoutSummary{
			DurationMinutes: duration.Minutes(),
			TotalSets:       ws.CompletedSetCount(),
			TotalVolume:     ws.TotalVolume(),
		},
	}
}

// slug turns "Hack Squats" into "hack_squats".
func slug(name string) string {
	return strings.ReplaceAll(standards.NormalizeName(name), " ", "_")
}
