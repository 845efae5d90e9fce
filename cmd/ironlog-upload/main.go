package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serverURL := flag.String("server", "", "IronLog server URL, overrides sync.server_url (e.g. https://ironlog.tail1234.ts.net)")
	apiKey := flag.String("key", "", "API key, overrides sync.api_key")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-upload", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Sync.ServerURL = *serverURL
	}
	if *apiKey != "" {
		cfg.Sync.APIKey = *apiKey
	}
	if cfg.Sync.ServerURL == "" {
		fmt.Fprintf(os.Stderr, "Error: -server or sync.server_url is required\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN(), "migrations")
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	pusher := upload.NewPusher(upload.NewClient(cfg.Sync.ServerURL, cfg.Sync.APIKey), store, log)
	stats, err := pusher.PushPending(ctx)
	printStats(stats)
	if err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
	if stats.Errored > 0 {
		os.Exit(1)
	}
	log.Info("upload complete")
}

func printStats(stats *upload.Stats) {
	fmt.Println()
	fmt.Println("=== Upload Summary ===")
	fmt.Printf("  Workouts pending: %d\n", stats.Pending)
	fmt.Printf("  Workouts sent:    %d\n", stats.Sent)
	fmt.Printf("  Workouts errored: %d\n", stats.Errored)
	fmt.Println()
}
