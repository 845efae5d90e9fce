package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/ironlog/internal/models"
)

const attempts = 3

// errPermanent marks a rejection that retrying cannot fix.
var errPermanent = errors.New("rejected by server")

// Client sends finished workouts to a remote IronLog server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the IronLog server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoff: time.Second,
	}
}

// SendWorkout POSTs a workout record to the server's sync endpoint.
// Retries up to 3 times with exponential backoff on failure. A record the
// server already has counts as sent.
func (c *Client) SendWorkout(ctx context.Context, rec models.WorkoutRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling workout: %w", err)
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<uint(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.post(ctx, data)
		if lastErr == nil || errors.Is(lastErr, errPermanent) {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func (c *Client) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/sync/workouts", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated, resp.StatusCode == http.StatusConflict:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("sync failed (status %d): %s: %w", resp.StatusCode, bytes.TrimSpace(body), errPermanent)
	}
	return fmt.Errorf("sync failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
}
