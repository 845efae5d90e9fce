package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/timer"
	"github.com/go-chi/chi/v5"
)

// sessionResponse is the view of the state machine returned by session endpoints.
type sessionResponse struct {
	State        string                 `json:"state"`
	Session      *models.WorkoutSession `json:"session,omitempty"`
	WouldDiscard bool                   `json:"would_discard_progress"`
	Resumed      *bool                  `json:"resumed,omitempty"`
}

// setRequest is the body of set create and update calls.
type setRequest struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	Unit   string  `json:"unit"`
}

type addExerciseRequest struct {
	models.TemplateExercise
	Position *int `json:"position,omitempty"`
}

type restRequest struct {
	Seconds float64 `json:"seconds"`
}

func (s *Server) sessionView() sessionResponse {
	resp := sessionResponse{
		State:        s.Manager.State().String(),
		WouldDiscard: s.Manager.WouldDiscardProgress(),
	}
	if ws, ok := s.Manager.Active(); ok {
		resp.Session = ws
	}
	return resp
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var tmpl models.WorkoutTemplate
	if !decodeBody(w, r, &tmpl) {
		return
	}
	if tmpl.ID == "" {
		writeError(w, http.StatusUnprocessableEntity, "workout id is required")
		return
	}

	ws, resumed, err := s.Manager.Initialize(r.Context(), tmpl)
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	resp := s.sessionView()
	resp.Session = ws
	resp.Resumed = &resumed
	writeJSON(w, status, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	discarded, err := s.Manager.Cancel(r.Context(), confirmed)
	if errors.Is(err, session.ErrConfirmationRequired) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                  err.Error(),
			"would_discard_progress": s.Manager.WouldDiscardProgress(),
		})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"discarded_progress": discarded})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Manager.Finish(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decodeBody(w, r, &req) {
		return
	}
	unit, ok := s.unit(w, req.Unit)
	if !ok {
		return
	}
	accepted, err := s.Manager.CompleteSet(req.Weight, req.Reps, unit)
	s.writeSetResult(w, accepted, err)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	e, set, ok := setIndexes(w, r)
	if !ok {
		return
	}
	var req setRequest
	if !decodeBody(w, r, &req) {
		return
	}
	unit, ok := s.unit(w, req.Unit)
	if !ok {
		return
	}
	accepted, err := s.Manager.UpdateSet(e, set, req.Weight, req.Reps, unit)
	s.writeSetResult(w, accepted, err)
}

func (s *Server) writeSetResult(w http.ResponseWriter, accepted bool, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	if !accepted {
		writeError(w, http.StatusUnprocessableEntity, "invalid set: reps must be positive and weight non-negative (positive unless bodyweight)")
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	e, set, ok := setIndexes(w, r)
	if !ok {
		return
	}
	s.writeMutation(w, s.Manager.DeleteSet(e, set))
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	e, ok := pathIndex(w, r, "e")
	if !ok {
		return
	}
	s.writeMutation(w, s.Manager.AddSet(e))
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var req addExerciseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.Manager.AddExercise(req.TemplateExercise, session.AddExerciseOptions{Position: req.Position})
	s.writeMutation(w, err)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	e, ok := pathIndex(w, r, "e")
	if !ok {
		return
	}
	s.writeMutation(w, s.Manager.DeleteExercise(e))
}

func (s *Server) handleAddRest(w http.ResponseWriter, r *http.Request) {
	var req restRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.writeMutation(w, s.Manager.AddRest(seconds(req.Seconds)))
}

func (s *Server) writeMutation(w http.ResponseWriter, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView())
}

func (s *Server) unit(w http.ResponseWriter, raw string) (models.Unit, bool) {
	if raw == "" {
		return s.DefaultUnit, true
	}
	u, err := models.ParseUnit(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return "", false
	}
	return u, true
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrInvalidExercise),
		errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, importer.ErrEmptyWorkout):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func setIndexes(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	e, ok := pathIndex(w, r, "e")
	if !ok {
		return 0, 0, false
	}
	set, ok := pathIndex(w, r, "s")
	if !ok {
		return 0, 0, false
	}
	return e, set, true
}

func pathIndex(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s index", name))
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
