package mcp

import (
	"log/slog"
	"net/http"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/prediction"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
// recorder ranks ad hoc estimates; ensemble produces forecasts.
func New(ds DataSource, recorder *analytics.Recorder, ensemble *prediction.Ensemble, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("IronLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("IronLog strength training server. Query personal records, lift history, finished workouts and strength forecasts. Weights in records and forecasts are in pounds."),
	)

	h := &handlers{ds: ds, recorder: recorder, ensemble: ensemble, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
		server.ServerTool{Tool: toolGetLiftHistory, Handler: h.getLiftHistory},
		server.ServerTool{Tool: toolForecastStrength, Handler: h.forecastStrength},
		server.ServerTool{Tool: toolEstimateOneRepMax, Handler: h.estimateOneRepMax},
		server.ServerTool{Tool: toolGetWorkoutHistory, Handler: h.getWorkoutHistory},
	)

	s.AddResources(
		server.ServerResource{Resource: resActiveSession, Handler: h.activeSession},
		server.ServerResource{Resource: resProgress, Handler: h.progress},
	)

	return s
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath("/mcp"))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds       DataSource
	recorder *analytics.Recorder
	ensemble *prediction.Ensemble
	log      *slog.Logger
}

// --- Resource definitions ---

var resActiveSession = mcp.NewResource(
	"ironlog://active_session",
	"Active Session",
	mcp.WithResourceDescription("The workout in progress with its exercises, completed sets and cursor, or null when none is active"),
	mcp.WithMIMEType("application/json"),
)

var resProgress = mcp.NewResource(
	"ironlog://progress",
	"Personal Records",
	mcp.WithResourceDescription("Every exercise's personal record with percentile ranking and tier"),
	mcp.WithMIMEType("application/json"),
)
