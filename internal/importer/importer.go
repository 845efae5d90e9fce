// Package importer loads finished workouts from exports and remote pushes
// into history through the same path a live Finish takes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/ingest/alpha"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
)

// ErrEmptyWorkout is returned for a record with no completed sets.
var ErrEmptyWorkout = errors.New("workout has no completed sets")

// Importer records finished workouts into history.
type Importer struct {
	store    storage.Store
	recorder *analytics.Recorder
	log      *slog.Logger
	dryRun   bool
}

// New creates a new Importer. In dry-run mode nothing is written and every
// parsed workout counts as inserted.
func New(store storage.Store, recorder *analytics.Recorder, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, recorder: recorder, log: log, dryRun: dryRun}
}

// ImportFile imports an Alpha Progression CSV export from path.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return &ingest.Result{}, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return imp.Import(ctx, f)
}

// Import parses an Alpha Progression CSV export and records its sessions
// oldest first, so personal records build up in the order they were set.
// Sessions already in history are counted as duplicates.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	res := &ingest.Result{}
	sessions, err := alpha.Parse(r)
	if err != nil {
		return res, fmt.Errorf("parsing export: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date.Before(sessions[j].Date)
	})

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec := alpha.Convert(s, imp.categorize)
		if rec.Summary.TotalSets == 0 {
			imp.log.Warn("skipping session without working sets", "session", s.Name, "date", s.Date)
			continue
		}
		if err := imp.record(ctx, &rec, res); err != nil {
			return res, err
		}
	}

	res.Message = fmt.Sprintf("%d workouts imported, %d already present", res.WorkoutsInserted, res.WorkoutsDuplicated)
	return res, nil
}

// ImportRecord records a single finished workout, such as one pushed by
// another device.
func (imp *Importer) ImportRecord(ctx context.Context, rec models.WorkoutRecord) (*ingest.Result, error) {
	res := &ingest.Result{}
	if rec.Session.ID == "" {
		return res, fmt.Errorf("workout record without session id")
	}
	if rec.Session.CompletedSetCount() == 0 {
		return res, ErrEmptyWorkout
	}
	if err := imp.record(ctx, &rec, res); err != nil {
		return res, err
	}
	return res, nil
}

func (imp *Importer) record(ctx context.Context, rec *models.WorkoutRecord, res *ingest.Result) error {
	res.WorkoutsReceived++
	res.SetsReceived += rec.Session.CompletedSetCount()
	lifts := 0
	for _, ex := range rec.Session.Exercises {
		if analytics.BestSet(ex.CompletedSets) >= 0 {
			lifts++
		}
	}

	if imp.dryRun {
		res.WorkoutsInserted++
		res.LiftsRecorded += lifts
		return nil
	}

	err := imp.store.InTx(ctx, func(tx storage.Store) error {
		return imp.recorder.RecordWorkout(ctx, tx, rec)
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		res.WorkoutsDuplicated++
		imp.log.Debug("workout already in history", "session", rec.Session.ID)
		return nil
	case err != nil:
		return fmt.Errorf("recording workout %s: %w", rec.Session.ID, err)
	}

	res.WorkoutsInserted++
	res.LiftsRecorded += lifts
	res.PersonalRecords += rec.Summary.PersonalRecordCount
	imp.log.Info("workout imported",
		"session", rec.Session.ID,
		"title", rec.Session.Title,
		"sets", rec.Summary.TotalSets,
		"personal_records", rec.Summary.PersonalRecordCount,
	)
	return nil
}

func (imp *Importer) categorize(name string) string {
	return imp.recorder.Category(name)
}
