package alpha

import (
	"strings"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/standards"
)

const sampleCSV = `
"Legs · Day 2 · Week 4 · Push-Pull-Legs";"2026-02-19 4:54 h";"1:02 hr"
"1. Hack Squats · Machine · 8 reps";"WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps"
#;KG;REPS;RIR
1;115;8;1
2;115;10;1
3;115;10;1
"2. Sumo Squats · Smith machine · 10 reps";"WU1 · 35 kg · 8 reps"
#;KG;REPS;RIR
1;70;8;1
2;70;12;1
"3. Hyperextensions on Roman Chair · Bodyweight · 10 reps";"WU1 · +0 kg · 8 reps"
#;KG;REPS;RIR
1;+35;10;0
2;+35;9;1
3;+35;10;0
"4. Reverse Lunges · Dumbbells · 10 reps"
#;KG;REPS;RIR
1;10;10;1
2;10;10;1
3;10;10;0
"5. Standing Calf Raises · Machine · 12 reps";"WU1 · 47,5 kg · 8 reps"
#;KG;REPS;RIR
1;157,5;11;1
2;157,5;11;0
3;157,5;10;0
"6. Hanging Leg Raises · Bodyweight · 12 reps · 2 dropsets"
#;KG;REPS;RIR
1;+0;12;1
2;+0;12;1
3;+0;12;0

"Push · Day 1 · Week 4 · Push-Pull-Legs";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps<br>WU2 · 47,5 kg · 8 reps<br>WU3 · 77,5 kg · 6 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;102,5;6;0
3;100;6;0
`

// TestParseSessions verifies a two-session export end to end.
func TestParseSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s1 := sessions[0]
	if s1.Name != "Legs · Day 2 · Week 4 · Push-Pull-Legs" || s1.Duration != "1:02 hr" {
		t.Errorf("session header = %q / %q", s1.Name, s1.Duration)
	}
	if want := time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC); !s1.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", s1.Date, want)
	}

	wantExercises := []struct {
		name      string
		equipment string
		target    int
		warmups   int
		working   int
	}{
		{"Hack Squats", "Machine", 8, 2, 3},
		{"Sumo Squats", "Smith machine", 10, 1, 2},
		{"Hyperextensions on Roman Chair", "Bodyweight", 10, 1, 3},
		{"Reverse Lunges", "Dumbbells", 10, 0, 3},
		{"Standing Calf Raises", "Machine", 12, 1, 3},
		{"Hanging Leg Raises", "Bodyweight", 12, 0, 3},
	}
	if len(s1.Exercises) != len(wantExercises) {
		t.Fatalf("exercises = %d, want %d", len(s1.Exercises), len(wantExercises))
	}
	for i, want := range wantExercises {
		ex := s1.Exercises[i]
		if ex.Name != want.name || ex.Equipment != want.equipment || ex.TargetReps != want.target {
			t.Errorf("exercise %d = %q/%q/%d, want %q/%q/%d", i, ex.Name, ex.Equipment, ex.TargetReps, want.name, want.equipment, want.target)
		}
		working := len(ex.WorkingSets())
		if working != want.working || len(ex.Sets)-working != want.warmups {
			t.Errorf("%s: %d working + %d warm-up, want %d + %d", ex.Name, working, len(ex.Sets)-working, want.working, want.warmups)
		}
	}

	bench := sessions[1].Exercises[0]
	if got := bench.WorkingSets()[0]; got.WeightKg != 102.5 || got.Reps != 6 || got.IsWarmup {
		t.Errorf("bench first working set = %+v", got)
	}
}

// TestParseWeight verifies European decimals and bodyweight-plus notation.
func TestParseWeight(t *testing.T) {
	tests := []struct {
		in       string
		want     float64
		wantPlus bool
	}{
		{"102,5", 102.5, false},
		{"115", 115, false},
		{"+35", 35, true},
		{"+0", 0, true},
		{" +12,5 ", 12.5, true},
	}
	for _, tt := range tests {
		got, plus := parseWeight(tt.in)
		if got != tt.want || plus != tt.wantPlus {
			t.Errorf("parseWeight(%q) = %v, %v; want %v, %v", tt.in, got, plus, tt.want, tt.wantPlus)
		}
	}
	if got := parseEuropeanFloat("0,5"); got != 0.5 {
		t.Errorf("fractional RIR = %v, want 0.5", got)
	}
}

// TestParseWarmups verifies warm-up extraction from the header's second field.
func TestParseWarmups(t *testing.T) {
	sets := parseWarmups("WU1 · 37,5 kg · 9 reps<br>WU2 · +0 kg · 7 reps")
	if len(sets) != 2 {
		t.Fatalf("warm-ups = %d, want 2", len(sets))
	}
	if sets[0].WeightKg != 37.5 || sets[0].Reps != 9 || !sets[0].IsWarmup {
		t.Errorf("WU1 = %+v", sets[0])
	}
	if !sets[1].IsBodyweightPlus || sets[1].Number != 2 {
		t.Errorf("WU2 = %+v", sets[1])
	}
	if parseWarmups("") != nil {
		t.Error("empty field should give no warm-ups")
	}
}

// TestParseDuration verifies the duration column.
func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"1:02 hr": 62 * time.Minute,
		"0:45 hr": 45 * time.Minute,
		"2:00":    2 * time.Hour,
		"n/a":     0,
	}
	for in, want := range tests {
		if got := ParseDuration(in); got != want {
			t.Errorf("ParseDuration(%q) = %s, want %s", in, got, want)
		}
	}
}

// TestParseErrors verifies structural errors and empty input.
func TestParseErrors(t *testing.T) {
	if sessions, err := Parse(strings.NewReader("")); err != nil || len(sessions) != 0 {
		t.Errorf("empty input = %v, %v", sessions, err)
	}
	if _, err := Parse(strings.NewReader(`"1. Bench Press · Barbell · 6 reps"`)); err == nil {
		t.Error("expected error for exercise without session")
	}
	orphan := "\"Push\";\"2026-02-17 5:04 h\";\"1:12 hr\"\n1;100;5;1\n"
	if _, err := Parse(strings.NewReader(orphan)); err == nil {
		t.Error("expected error for set without exercise")
	}
}

// TestConvert verifies the workout record built from a parsed session.
func TestConvert(t *testing.T) {
	sessions, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	table, err := standards.Default()
	if err != nil {
		t.Fatal(err)
	}
	categorize := func(name string) string { return table.Resolve(name) }

	rec := Convert(sessions[1], categorize)
	again := Convert(sessions[1], categorize)
	if rec.Session.ID == "" || rec.Session.ID != again.Session.ID {
		t.Errorf("IDs not deterministic: %q vs %q", rec.Session.ID, again.Session.ID)
	}
	if rec.Session.ID == Convert(sessions[0], categorize).Session.ID {
		t.Error("different sessions share an ID")
	}

	if rec.Summary.DurationMinutes != 72 || rec.Summary.TotalSets != 3 {
		t.Errorf("summary = %+v", rec.Summary)
	}
	if want := 102.5*6*2 + 100*6; rec.Summary.TotalVolume != want {
		t.Errorf("TotalVolume = %v, want %v", rec.Summary.TotalVolume, want)
	}
	if !rec.FinishedAt.Equal(rec.Session.StartedAt.Add(72 * time.Minute)) {
		t.Errorf("FinishedAt = %v", rec.FinishedAt)
	}

	bench := rec.Session.Exercises[0]
	if bench.ExerciseID != "bench_press" || bench.Category != "bench_press" || !bench.IsCompleted {
		t.Errorf("bench = %+v", bench)
	}
	for _, s := range bench.CompletedSets {
		if s.Unit != models.UnitKg {
			t.Errorf("set unit = %s, want kg", s.Unit)
		}
	}

	legs := Convert(sessions[0], categorize)
	hyper := legs.Session.Exercises[2]
	if hyper.ExerciseID != "hyperextensions_on_roman_chair" || hyper.Category != "" || !hyper.Bodyweight {
		t.Errorf("hyperextensions = %+v", hyper)
	}
	if len(hyper.CompletedSets) != 3 || hyper.CompletedSets[0].Weight != 35 {
		t.Errorf("hyperextension sets = %+v", hyper.CompletedSets)
	}
}
