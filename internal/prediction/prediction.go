// Package prediction forecasts future one-rep-max strength from a lift history.
//
// Forecasts come from an Ensemble of registered Models; each model maps a
// chronological series of estimates and a horizon in days to one projected
// value, and the ensemble reports their arithmetic mean.
package prediction

import (
	"math"
	"sort"
	"time"
)

// Point is one observation in a strength series.
type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Model is a single forecasting method.
type Model interface {
	Name() string
	Describe() string
	Predict(series []Point, horizonDays float64) float64
}

// DefaultHorizons are the horizons (in days) reported when none are given.
var DefaultHorizons = []float64{30, 90, 180, 365}

const (
	// DefaultHeadroom is the assumed ceiling above the best value seen so far.
	// It is a heuristic, not a derived quantity.
	DefaultHeadroom = 1.15
	// DefaultAlpha is the exponential smoothing factor.
	DefaultAlpha = 0.3
)

// Asymptotic assumes progress slows as the lifter approaches a ceiling of
// Headroom x the best value in the series.
type Asymptotic struct {
	Headroom float64
}

func (Asymptotic) Name() string { return "asymptotic" }

func (a Asymptotic) Describe() string {
	return "exponential approach to a ceiling at the best value times the headroom factor; linear for short histories"
}

func (a Asymptotic) Predict(series []Point, horizonDays float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	first, last := series[0], series[n-1]
	if n < 3 {
		return linear(first, last, horizonDays)
	}

	headroom := a.Headroom
	if headroom <= 0 {
		headroom = DefaultHeadroom
	}
	ceiling := headroom * maxValue(series)

	weeks := last.At.Sub(first.At).Hours() / (24 * 7)
	var rate float64
	if weeks > 0 && first.Value > 0 {
		rate = ((last.Value - first.Value) / first.Value) / weeks
	}

	predicted := last.Value + (ceiling-last.Value)*(1-math.Exp(-rate*horizonDays/30))
	return math.Max(predicted, last.Value)
}

// linear extrapolates the per-day slope between two points.
func linear(first, last Point, horizonDays float64) float64 {
	days := last.At.Sub(first.At).Hours() / 24
	if days <= 0 {
		return last.Value
	}
	slope := (last.Value - first.Value) / days
	return last.Value + slope*horizonDays
}

// Smoothing projects a trend from a single exponentially smoothed baseline.
type Smoothing struct {
	Alpha float64
}

func (Smoothing) Name() string { return "exponential_smoothing" }

func (s Smoothing) Describe() string {
	return "exponentially smoothed baseline plus the gap to the latest value spread over the series length"
}

func (s Smoothing) Predict(series []Point, horizonDays float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}
	alpha := s.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}

	smoothed := series[0].Value
	for _, p := range series[1:] {
		smoothed = alpha*p.Value + (1-alpha)*smoothed
	}
	last := series[n-1].Value
	trend := (last - smoothed) / float64(n)

	return math.Max(smoothed+trend*horizonDays/7, last)
}

func maxValue(series []Point) float64 {
	m := series[0].Value
	for _, p := range series[1:] {
		if p.Value > m {
			m = p.Value
		}
	}
	return m
}

// Forecast is the ensemble output for one horizon.
type Forecast struct {
	HorizonDays float64            `json:"horizon_days"`
	Value       float64            `json:"value"`
	PerModel    map[string]float64 `json:"per_model"`
}

// Ensemble averages the predictions of its models.
type Ensemble struct {
	models []Model
}

// NewEnsemble returns an ensemble of the given models.
func NewEnsemble(models ...Model) *Ensemble {
	return &Ensemble{models: models}
}

// DefaultEnsemble returns the asymptotic and smoothing models with the given constants.
func DefaultEnsemble(headroom, alpha float64) *Ensemble {
	return NewEnsemble(Asymptotic{Headroom: headroom}, Smoothing{Alpha: alpha})
}

// Register adds a model.
func (e *Ensemble) Register(m Model) {
	e.models = append(e.models, m)
}

// Models returns the registered models.
func (e *Ensemble) Models() []Model {
	return append([]Model(nil), e.models...)
}

// Predict returns the mean prediction of every model. The series is sorted
// by time first; an empty series or ensemble yields 0.
func (e *Ensemble) Predict(series []Point, horizonDays float64) float64 {
	if len(e.models) == 0 || len(series) == 0 {
		return 0
	}
	series = sorted(series)
	var sum float64
	for _, m := range e.models {
		sum += m.Predict(series, horizonDays)
	}
	return sum / float64(len(e.models))
}

// Forecast predicts each horizon, defaulting to DefaultHorizons.
func (e *Ensemble) Forecast(series []Point, horizons ...float64) []Forecast {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	series = sorted(series)
	out := make([]Forecast, 0, len(horizons))
	for _, h := range horizons {
		f := Forecast{HorizonDays: h, PerModel: make(map[string]float64, len(e.models))}
		for _, m := range e.models {
			if len(series) > 0 {
				f.PerModel[m.Name()] = m.Predict(series, h)
			}
		}
		f.Value = e.Predict(series, h)
		out = append(out, f)
	}
	return out
}

func sorted(series []Point) []Point {
	if sort.SliceIsSorted(series, func(i, j int) bool { return series[i].At.Before(series[j].At) }) {
		return series
	}
	s := append([]Point(nil), series...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].At.Before(s[j].At) })
	return s
}
