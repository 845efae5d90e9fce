package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Personal records with percentile ranking, strength tier and the points needed for the next tier. Omit exercise to list every exercise."),
	mcp.WithString("exercise", mcp.Description("Exercise id or name (e.g. bench_press, 'Barbell Bench Press')")),
)

var toolGetLiftHistory = mcp.NewTool("get_lift_history",
	mcp.WithDescription("Best set of each finished workout for one exercise, oldest first, plus the daily best estimated one-rep max series in pounds."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id or name")),
	mcp.WithNumber("limit", mcp.Description("Return only the most recent N lifts"), mcp.Min(0)),
)

var toolForecastStrength = mcp.NewTool("forecast_strength",
	mcp.WithDescription("Forecast the estimated one-rep max of an exercise with an ensemble of an asymptotic ceiling model and exponential smoothing. Values are in pounds."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id or name")),
	mcp.WithString("horizons", mcp.Description("Comma-separated horizons in days. Defaults to 30,90,180,365.")),
)

var toolEstimateOneRepMax = mcp.NewTool("estimate_one_rep_max",
	mcp.WithDescription("Estimate a one-rep max from a set with the Epley formula. With an exercise, also rank it against population standards for the configured lifter."),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Weight lifted"), mcp.Min(0)),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Repetitions performed"), mcp.Min(1)),
	mcp.WithString("unit", mcp.Description("Weight unit. Defaults to lbs."), mcp.Enum("lbs", "kg")),
	mcp.WithString("exercise", mcp.Description("Exercise id or name to rank against")),
)

var toolGetWorkoutHistory = mcp.NewTool("get_workout_history",
	mcp.WithDescription("Finished workouts, newest first, with every exercise and set and the summary (duration, sets, volume, personal records)."),
	mcp.WithNumber("limit", mcp.Description("Maximum workouts to return. Defaults to 10."), mcp.Min(0)),
)

type oneRepMaxInput struct {
	Weight   float64 `json:"weight"`
	Reps     int     `json:"reps"`
	Unit     string  `json:"unit"`
	Exercise string  `json:"exercise"`
}

type liftHistoryInput struct {
	Exercise string `json:"exercise"`
	Limit    int    `json:"limit"`
}

type workoutHistoryInput struct {
	Limit *int `json:"limit"`
}

// --- Tool handlers ---

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("exercise", "")
	if name == "" {
		all, err := h.ds.ListExerciseProgress(ctx)
		if err != nil {
			h.log.Error("mcp get_exercise_progress", "error", err)
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		reports := make([]analytics.Report, 0, len(all))
		for _, p := range all {
			reports = append(reports, analytics.NewReport(p))
		}
		return jsonResult(reports)
	}

	p, err := h.findProgress(ctx, name)
	if err != nil {
		h.log.Error("mcp get_exercise_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if p == nil {
		return mcp.NewToolResultError("no personal record for " + name), nil
	}
	return jsonResult(analytics.NewReport(*p))
}

func (h *handlers) getLiftHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in liftHistoryInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if in.Exercise == "" {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	id, lifts, err := h.findLifts(ctx, in.Exercise)
	if err != nil {
		h.log.Error("mcp get_lift_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if in.Limit > 0 && len(lifts) > in.Limit {
		lifts = lifts[len(lifts)-in.Limit:]
	}
	return jsonResult(map[string]any{
		"exercise_id": id,
		"lifts":       lifts,
		"series":      analytics.Series(lifts),
		"unit":        models.CanonicalUnit,
	})
}

func (h *handlers) forecastStrength(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	horizons, err := parseHorizons(req.GetString("horizons", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, lifts, err := h.findLifts(ctx, name)
	if err != nil {
		h.log.Error("mcp forecast_strength", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if len(lifts) == 0 {
		return mcp.NewToolResultError("no lift history for " + name), nil
	}

	series := analytics.Series(lifts)
	described := make(map[string]string)
	for _, m := range h.ensemble.Models() {
		described[m.Name()] = m.Describe()
	}
	return jsonResult(map[string]any{
		"exercise_id": id,
		"current":     series[len(series)-1].Value,
		"forecasts":   h.ensemble.Forecast(series, horizons...),
		"models":      described,
	})
}

func (h *handlers) estimateOneRepMax(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in oneRepMaxInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if in.Reps <= 0 || in.Weight < 0 {
		return mcp.NewToolResultError("reps must be positive and weight non-negative"), nil
	}
	unit, err := models.ParseUnit(in.Unit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	orm := analytics.EstimateOneRepMax(in.Weight, in.Reps)
	out := map[string]any{"one_rep_max": orm, "unit": unit}
	if in.Exercise != "" && h.recorder != nil {
		category := h.recorder.Category(in.Exercise)
		if category == "" {
			out["note"] = "no population standard for " + in.Exercise
		} else {
			pct := h.recorder.Percentile(models.ToCanonical(orm, unit), category)
			out["exercise"] = category
			out["percentile"] = pct
			out["tier"] = analytics.TierFromPercentile(float64(pct))
			out["next_tier"] = analytics.NextTierGap(float64(pct))
		}
	}
	return jsonResult(out)
}

func (h *handlers) getWorkoutHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in workoutHistoryInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	limit := 10
	if in.Limit != nil {
		limit = *in.Limit
	}

	records, err := h.ds.ListWorkoutHistory(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_workout_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if records == nil {
		records = []models.WorkoutRecord{}
	}
	return jsonResult(records)
}

// findProgress looks an exercise up by id first, then by its standards key.
func (h *handlers) findProgress(ctx context.Context, name string) (*models.ExerciseProgress, error) {
	for _, id := range h.candidateIDs(name) {
		p, err := h.ds.LoadExerciseProgress(ctx, id)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

// findLifts returns the lifts of the first candidate id that has any.
func (h *handlers) findLifts(ctx context.Context, name string) (string, []models.HistoricalLift, error) {
	ids := h.candidateIDs(name)
	for _, id := range ids {
		lifts, err := h.ds.ListLifts(ctx, id)
		if err != nil {
			return id, nil, err
		}
		if len(lifts) > 0 {
			return id, lifts, nil
		}
	}
	return ids[0], nil, nil
}

// candidateIDs lists the ids an exercise may be stored under: as given,
// snake-cased, and its standards key.
func (h *handlers) candidateIDs(name string) []string {
	name = strings.TrimSpace(name)
	ids := []string{name}
	add := func(id string) {
		for _, existing := range ids {
			if existing == id {
				return
			}
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	add(strings.ReplaceAll(strings.ToLower(name), " ", "_"))
	if h.recorder != nil {
		add(h.recorder.Category(name))
	}
	return ids
}

func parseHorizons(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid horizon %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
