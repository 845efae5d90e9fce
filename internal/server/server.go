package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/prediction"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/timer"
	"github.com/go-chi/chi/v5"
)

// Deps are the components the HTTP handlers drive.
type Deps struct {
	Manager  *session.Manager
	Timer    *timer.Timer
	Store    storage.Store
	Recorder *analytics.Recorder
	Ensemble *prediction.Ensemble
	Importer *importer.Importer
	// DefaultUnit applies to set input that names no unit.
	DefaultUnit models.Unit
	// APIKey guards the sync and import endpoints.
	APIKey string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	log    *slog.Logger
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(deps Deps, log *slog.Logger) *Server {
	if !deps.DefaultUnit.Valid() {
		deps.DefaultUnit = models.CanonicalUnit
	}
	s := &Server{
		Deps:   deps,
		log:    log,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle attaches another handler, such as the MCP endpoint, at pattern.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/", s.handleInitialize)
		r.Delete("/", s.handleCancel)
		r.Post("/finish", s.handleFinish)
		r.Post("/sets", s.handleCompleteSet)
		r.Post("/rest", s.handleAddRest)
		r.Post("/exercises", s.handleAddExercise)
		r.Delete("/exercises/{e}", s.handleDeleteExercise)
		r.Post("/exercises/{e}/sets", s.handleAddSet)
		r.Put("/exercises/{e}/sets/{s}", s.handleUpdateSet)
		r.Delete("/exercises/{e}/sets/{s}", s.handleDeleteSet)
	})

	s.router.Get("/api/v1/timer", s.handleTimerStatus)
	s.router.Post("/api/v1/timer", s.handleTimerStart)
	s.router.Delete("/api/v1/timer", s.handleTimerSkip)

	s.router.Get("/api/v1/history", s.handleHistory)
	s.router.Get("/api/v1/lifts/{exercise}", s.handleLifts)
	s.router.Get("/api/v1/progress", s.handleListProgress)
	s.router.Get("/api/v1/progress/{exercise}", s.handleGetProgress)
	s.router.Get("/api/v1/progress/{exercise}/forecast", s.handleForecast)
	s.router.Get("/api/v1/analytics/one-rep-max", s.handleOneRepMax)
	s.router.Get("/api/v1/analytics/tier", s.handleTier)

	// Machine-to-machine endpoints (API key required)
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.APIKey))
		r.Post("/api/v1/sync/workouts", s.handleSyncWorkout)
		r.Post("/api/v1/ingest/alpha", s.handleAlphaIngest)
	})
}
