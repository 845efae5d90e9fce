package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/prediction"
	"github.com/go-chi/chi/v5"
)

type modelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type forecastResponse struct {
	ExerciseID string                `json:"exercise_id"`
	Unit       models.Unit           `json:"unit"`
	Series     []prediction.Point    `json:"series"`
	Forecasts  []prediction.Forecast `json:"forecasts"`
	Models     []modelInfo           `json:"models"`
}

func (s *Server) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Timer.Status(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := s.Timer.Start(r.Context(), seconds(req.Seconds)); err != nil {
		s.fail(w, err)
		return
	}
	st, err := s.Timer.Status(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// handleTimerSkip stops the countdown and credits the rest taken to the
// active session, if there is one.
func (s *Server) handleTimerSkip(w http.ResponseWriter, r *http.Request) {
	rested, err := s.Timer.Skip(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if _, ok := s.Manager.Active(); ok {
		if err := s.Manager.AddRest(rested); err != nil {
			s.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]float64{"rested_seconds": rested.Seconds()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	records, err := s.Store.ListWorkoutHistory(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if records == nil {
		records = []models.WorkoutRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleLifts(w http.ResponseWriter, r *http.Request) {
	lifts, err := s.Store.ListLifts(r.Context(), chi.URLParam(r, "exercise"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if lifts == nil {
		lifts = []models.HistoricalLift{}
	}
	writeJSON(w, http.StatusOK, lifts)
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	all, err := s.Store.ListExerciseProgress(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	reports := make([]analytics.Report, 0, len(all))
	for _, p := range all {
		reports = append(reports, analytics.NewReport(p))
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "exercise")
	p, err := s.Store.LoadExerciseProgress(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "no personal record for "+id)
		return
	}
	writeJSON(w, http.StatusOK, analytics.NewReport(*p))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "exercise")
	horizons, err := parseHorizons(r.URL.Query().Get("horizons"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lifts, err := s.Store.ListLifts(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(lifts) == 0 {
		writeError(w, http.StatusNotFound, "no lift history for "+id)
		return
	}

	series := analytics.Series(lifts)
	resp := forecastResponse{
		ExerciseID: id,
		Unit:       models.CanonicalUnit,
		Series:     series,
		Forecasts:  s.Ensemble.Forecast(series, horizons...),
	}
	for _, m := range s.Ensemble.Models() {
		resp.Models = append(resp.Models, modelInfo{Name: m.Name(), Description: m.Describe()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOneRepMax(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	weight, err := strconv.ParseFloat(q.Get("weight"), 64)
	if err != nil || weight < 0 {
		writeError(w, http.StatusBadRequest, "weight must be a non-negative number")
		return
	}
	reps, err := strconv.Atoi(q.Get("reps"))
	if err != nil || reps <= 0 {
		writeError(w, http.StatusBadRequest, "reps must be a positive integer")
		return
	}
	unit, ok := s.unit(w, q.Get("unit"))
	if !ok {
		return
	}

	orm := analytics.EstimateOneRepMax(weight, reps)
	resp := map[string]any{
		"one_rep_max": orm,
		"unit":        unit,
	}
	if ex := q.Get("exercise"); ex != "" {
		category := s.Recorder.Category(ex)
		pct := s.Recorder.Percentile(models.ToCanonical(orm, unit), category)
		resp["exercise"] = category
		resp["percentile"] = pct
		resp["tier"] = analytics.TierFromPercentile(float64(pct))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	p, err := strconv.ParseFloat(r.URL.Query().Get("percentile"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "percentile must be a number")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tier":      analytics.TierFromPercentile(p),
		"next_tier": analytics.NextTierGap(p),
	})
}

// parseHorizons reads a comma-separated list of day counts. Empty input
// selects the default horizons.
func parseHorizons(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		h, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || h < 0 {
			return nil, fmt.Errorf("invalid horizon %q", part)
		}
		out = append(out, h)
	}
	return out, nil
}
