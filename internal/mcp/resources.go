package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) activeSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, err := h.ds.LoadActiveSession(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, s)
}

func (h *handlers) progress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	all, err := h.ds.ListExerciseProgress(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]analytics.Report, 0, len(all))
	for _, p := range all {
		reports = append(reports, analytics.NewReport(p))
	}
	return jsonContents(req.Params.URI, reports)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
