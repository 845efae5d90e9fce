package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/models"
)

// errNotFound is returned by get when the server answers 404.
var errNotFound = errors.New("not found")

// HTTPClient implements DataSource by calling the IronLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, errNotFound)
	}
	return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) LoadActiveSession(ctx context.Context) (*models.WorkoutSession, error) {
	var resp struct {
		Session *models.WorkoutSession `json:"session"`
	}
	if err := c.getJSON(ctx, "/api/v1/session", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *HTTPClient) ListWorkoutHistory(ctx context.Context, limit int) ([]models.WorkoutRecord, error) {
	params := url.Values{}
	// The REST endpoint treats 0 as "everything"; negative is rejected.
	if limit < 0 {
		limit = 0
	}
	params.Set("limit", strconv.Itoa(limit))

	var records []models.WorkoutRecord
	if err := c.getJSON(ctx, "/api/v1/history", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) ListLifts(ctx context.Context, exerciseID string) ([]models.HistoricalLift, error) {
	var lifts []models.HistoricalLift
	if err := c.getJSON(ctx, "/api/v1/lifts/"+url.PathEscape(exerciseID), nil, &lifts); err != nil {
		return nil, err
	}
	return lifts, nil
}

// LoadExerciseProgress returns nil without error when the server has no
// record for exerciseID.
func (c *HTTPClient) LoadExerciseProgress(ctx context.Context, exerciseID string) (*models.ExerciseProgress, error) {
	var p models.ExerciseProgress
	err := c.getJSON(ctx, "/api/v1/progress/"+url.PathEscape(exerciseID), nil, &p)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ListExerciseProgress(ctx context.Context) ([]models.ExerciseProgress, error) {
	var all []models.ExerciseProgress
	if err := c.getJSON(ctx, "/api/v1/progress", nil, &all); err != nil {
		return nil, err
	}
	return all, nil
}
