package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
)

func testClient(url string) *Client {
	c := NewClient(url+"/", "secret")
	c.backoff = time.Millisecond
	return c
}

func sampleRecord(id string) models.WorkoutRecord {
	return models.WorkoutRecord{
		Session:    models.WorkoutSession{ID: id, WorkoutID: "push-a", Title: "Push A"},
		FinishedAt: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC),
		Summary:    models.WorkoutSummary{TotalSets: 3, TotalVolume: 3240},
	}
}

// TestSendWorkout verifies the request path, headers and body.
func TestSendWorkout(t *testing.T) {
	var got models.WorkoutRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sync/workouts" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("X-API-Key = %q", r.Header.Get("X-API-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).SendWorkout(context.Background(), sampleRecord("s1")); err != nil {
		t.Fatalf("SendWorkout: %v", err)
	}
	if got.Session.ID != "s1" || got.Summary.TotalVolume != 3240 {
		t.Errorf("server received %+v", got)
	}
}

// TestSendWorkoutRetries verifies transient failures are retried and
// permanent ones are not.
func TestSendWorkoutRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after 5xx", []int{500, 502, 200}, 3, false},
		{"gives up after 3", []int{500, 500, 500, 200}, 3, true},
		{"conflict counts as sent", []int{409}, 1, false},
		{"bad request is permanent", []int{400, 200}, 1, true},
		{"rate limit retried", []int{429, 200}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer srv.Close()

			err := testClient(srv.URL).SendWorkout(context.Background(), sampleRecord("s1"))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

type memStore struct {
	mu      sync.Mutex
	records []models.WorkoutRecord
	synced  map[string]bool
}

func (m *memStore) ListUnsyncedWorkouts(context.Context) ([]models.WorkoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkoutRecord
	for _, r := range m.records {
		if !m.synced[r.Session.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarkWorkoutSynced(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[id] = true
	return nil
}

// TestPushPending verifies sent records are marked and failures counted.
func TestPushPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec models.WorkoutRecord
		json.NewDecoder(r.Body).Decode(&rec)
		if rec.Session.ID == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := &memStore{
		records: []models.WorkoutRecord{sampleRecord("a"), sampleRecord("bad"), sampleRecord("c")},
		synced:  map[string]bool{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPusher(testClient(srv.URL), store, log)

	stats, err := p.PushPending(context.Background())
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if *stats != (Stats{Pending: 3, Sent: 2, Errored: 1}) {
		t.Errorf("stats = %+v", *stats)
	}
	if !store.synced["a"] || !store.synced["c"] || store.synced["bad"] {
		t.Errorf("synced = %v", store.synced)
	}
}

// TestWorkoutFinishedSwallowsErrors verifies a failed push is only logged and
// leaves the record unsynced.
func TestWorkoutFinishedSwallowsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := &memStore{synced: map[string]bool{}}
	p := NewPusher(testClient(srv.URL), store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.WorkoutFinished(sampleRecord("s1"))

	if store.synced["s1"] {
		t.Error("failed push marked as synced")
	}
}

// TestSendWorkoutContextCancelled verifies a cancelled context stops retries.
func TestSendWorkoutContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := c.SendWorkout(ctx, sampleRecord("s1")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
