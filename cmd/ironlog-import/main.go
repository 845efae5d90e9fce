package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/standards"
	"github.com/claude/ironlog/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	file := flag.String("file", "", "path to an Alpha Progression CSV export (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *file == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-import -config config.yaml -file export.csv [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	table, err := loadStandards(cfg.Analytics.StandardsPath)
	if err != nil {
		log.Error("failed to load strength standards", "error", err)
		os.Exit(1)
	}
	recorder := analytics.NewRecorder(table, analytics.Profile{
		BodyweightLbs: cfg.Profile.BodyweightLbs(),
		Gender:        cfg.Profile.LifterGender(),
		Age:           cfg.Profile.Age,
	}, log)

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	// Connect database
	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN(), "migrations")
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("database ready", "driver", cfg.Database.Driver)

	// Run import
	imp := importer.New(store, recorder, log, *dryRun)
	result, err := imp.ImportFile(ctx, *file)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, result)
		os.Exit(1)
	}

	printStats(log, result)
	log.Info("import complete")
}

func loadStandards(path string) (*standards.Table, error) {
	if path == "" {
		return standards.Default()
	}
	return standards.Load(path)
}

func printStats(log *slog.Logger, result *ingest.Result) {
	if result == nil {
		return
	}
	log.Info("import stats",
		"workouts_received", result.WorkoutsReceived,
		"workouts_inserted", result.WorkoutsInserted,
		"workouts_duplicated", result.WorkoutsDuplicated,
		"sets_received", result.SetsReceived,
		"lifts_recorded", result.LiftsRecorded,
		"personal_records", result.PersonalRecords,
	)
}
