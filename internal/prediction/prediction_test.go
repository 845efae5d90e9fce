package prediction

import (
	"math"
	"testing"
	"time"
)

var day0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func series(days []int, values []float64) []Point {
	pts := make([]Point, len(days))
	for i := range days {
		pts[i] = Point{At: day0.AddDate(0, 0, days[i]), Value: values[i]}
	}
	return pts
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %.6f, want %.6f", name, got, want)
	}
}

// TestAsymptoticShortSeriesIsLinear verifies that fewer than three points
// fall back to linear extrapolation between the first and last point.
func TestAsymptoticShortSeriesIsLinear(t *testing.T) {
	m := Asymptotic{Headroom: DefaultHeadroom}

	approx(t, "single point", m.Predict(series([]int{0}, []float64{100}), 30), 100)
	approx(t, "two points", m.Predict(series([]int{0, 10}, []float64{100, 110}), 30), 140)
	approx(t, "same day", m.Predict(series([]int{3, 3}, []float64{100, 120}), 30), 120)
	approx(t, "empty", m.Predict(nil, 30), 0)
}

// TestAsymptoticClosesHeadroom verifies the exponential approach toward
// 1.15 x the best value, using the weekly growth rate of the history.
func TestAsymptoticClosesHeadroom(t *testing.T) {
	m := Asymptotic{Headroom: 1.15}
	s := series([]int{0, 14, 28}, []float64{100, 105, 110})

	approx(t, "30 days", m.Predict(s, 30), 110.40738645153252)
	approx(t, "90 days", m.Predict(s, 90), 111.19223247557888)

	// Never beyond the ceiling, however long the horizon.
	if got := m.Predict(s, 100000); got > 110*1.15+1e-9 {
		t.Errorf("prediction %.3f exceeds ceiling", got)
	}
}

// TestAsymptoticNeverBelowLast verifies a declining history is clamped to the last value.
func TestAsymptoticNeverBelowLast(t *testing.T) {
	m := Asymptotic{Headroom: 1.15}
	s := series([]int{0, 7, 14}, []float64{120, 110, 100})
	approx(t, "declining", m.Predict(s, 90), 100)
}

// TestAsymptoticZeroHeadroomUsesDefault verifies an unset headroom falls back to the default.
func TestAsymptoticZeroHeadroomUsesDefault(t *testing.T) {
	s := series([]int{0, 14, 28}, []float64{100, 105, 110})
	approx(t, "zero headroom", Asymptotic{}.Predict(s, 30), Asymptotic{Headroom: DefaultHeadroom}.Predict(s, 30))
}

// TestSmoothingProjection verifies the smoothed baseline and trend arithmetic.
func TestSmoothingProjection(t *testing.T) {
	m := Smoothing{Alpha: 0.3}
	s := series([]int{0, 14, 28}, []float64{100, 105, 110})

	// smoothed = 104.05, trend = (110-104.05)/3
	approx(t, "70 days", m.Predict(s, 70), 104.05+(110-104.05)/3*10)
	// short horizons are clamped to the last value
	approx(t, "7 days", m.Predict(s, 7), 110)
	approx(t, "empty", m.Predict(nil, 30), 0)
}

// TestEnsembleAveragesModels verifies the ensemble reports the arithmetic mean.
func TestEnsembleAveragesModels(t *testing.T) {
	e := DefaultEnsemble(1.15, 0.3)
	s := series([]int{0, 14, 28}, []float64{100, 105, 110})

	approx(t, "90 days", e.Predict(s, 90), (111.19223247557888+129.55)/2)
}

type constModel float64

func (c constModel) Name() string { return "const" }
func (c constModel) Describe() string { return "constant" }
func (c constModel) Predict([]Point, float64) float64 { return float64(c) }

// TestEnsembleRegister verifies models registered later join the average
// without changing call sites.
func TestEnsembleRegister(t *testing.T) {
	e := NewEnsemble(constModel(100))
	s := series([]int{0}, []float64{1})
	approx(t, "one model", e.Predict(s, 30), 100)

	e.Register(constModel(200))
	approx(t, "two models", e.Predict(s, 30), 150)
	if len(e.Models()) != 2 {
		t.Errorf("models = %d, want 2", len(e.Models()))
	}
}

// TestEnsembleSortsSeries verifies out-of-order input is forecast chronologically.
func TestEnsembleSortsSeries(t *testing.T) {
	e := DefaultEnsemble(1.15, 0.3)
	ordered := series([]int{0, 14, 28}, []float64{100, 105, 110})
	shuffled := []Point{ordered[2], ordered[0], ordered[1]}
	approx(t, "shuffled", e.Predict(shuffled, 90), e.Predict(ordered, 90))
}

// TestForecastDefaultHorizons verifies Forecast reports every default horizon
// with per-model breakdowns.
func TestForecastDefaultHorizons(t *testing.T) {
	e := DefaultEnsemble(1.15, 0.3)
	s := series([]int{0, 14, 28}, []float64{100, 105, 110})

	got := e.Forecast(s)
	if len(got) != len(DefaultHorizons) {
		t.Fatalf("forecasts = %d, want %d", len(got), len(DefaultHorizons))
	}
	for i, f := range got {
		if f.HorizonDays != DefaultHorizons[i] {
			t.Errorf("horizon[%d] = %v, want %v", i, f.HorizonDays, DefaultHorizons[i])
		}
		if len(f.PerModel) != 2 {
			t.Errorf("per-model entries = %d, want 2", len(f.PerModel))
		}
		if f.Value < 110 {
			t.Errorf("forecast %.2f below last value", f.Value)
		}
	}
}

// TestEmptyEnsemble verifies an ensemble with no models or no data predicts 0.
func TestEmptyEnsemble(t *testing.T) {
	if got := NewEnsemble().Predict(series([]int{0}, []float64{100}), 30); got != 0 {
		t.Errorf("no models = %v, want 0", got)
	}
	if got := DefaultEnsemble(1.15, 0.3).Predict(nil, 30); got != 0 {
		t.Errorf("no data = %v, want 0", got)
	}
}
