package server

import (
	"net/http"

	"github.com/claude/ironlog/internal/models"
)

// handleSyncWorkout accepts a finished workout pushed by another device.
// A record already in history is acknowledged with 409 so the sender can
// mark it as delivered.
func (s *Server) handleSyncWorkout(w http.ResponseWriter, r *http.Request) {
	var rec models.WorkoutRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	if rec.Session.ID == "" {
		writeError(w, http.StatusUnprocessableEntity, "session id is required")
		return
	}

	result, err := s.Importer.ImportRecord(r.Context(), rec)
	if err != nil {
		s.fail(w, err)
		return
	}
	if result.WorkoutsDuplicated > 0 {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	s.log.Info("synced workout received", "session", rec.Session.ID, "personal_records", result.PersonalRecords)
	writeJSON(w, http.StatusCreated, result)
}

// handleAlphaIngest imports an Alpha Progression CSV export from the request body.
func (s *Server) handleAlphaIngest(w http.ResponseWriter, r *http.Request) {
	result, err := s.Importer.Import(r.Context(), r.Body)
	if err != nil {
		s.log.Error("alpha ingest error", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
