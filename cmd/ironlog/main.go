package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/ironlog/internal/analytics"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/prediction"
	"github.com/claude/ironlog/internal/server"
	"github.com/claude/ironlog/internal/session"
	"github.com/claude/ironlog/internal/standards"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/timer"
	"github.com/claude/ironlog/internal/upload"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	remote := flag.String("remote", "", "with -mcp-stdio: read data from this IronLog server instead of the local database")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout belongs to the MCP protocol in stdio mode.
	logOut := os.Stdout
	if *mcpStdio {
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	log.Info("IronLog starting", "version", Version)

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
	ensemble := prediction.DefaultEnsemble(cfg.Analytics.Headroom, cfg.Analytics.SmoothingAlpha)

	if *mcpStdio && *remote != "" {
		log.Info("MCP stdio mode", "remote", *remote)
		serveStdio(mcp.NewHTTPClient(*remote), recorder, ensemble, log)
		return
	}

	// Connect database (postgres applies migrations first)
	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN(), "migrations")
	if err != nil {
		log.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("database ready", "driver", cfg.Database.Driver)

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	if *mcpStdio {
		log.Info("MCP stdio mode", "database", cfg.Database.Driver)
		serveStdio(store, recorder, ensemble, log)
		return
	}

	rest := timer.New(store, log)
	if err := rest.Restore(ctx); err != nil {
		log.Warn("rest timer restore failed", "error", err)
	}

	opts := []session.Option{session.WithLogger(log)}
	if cfg.Sync.Enabled {
		pusher := upload.NewPusher(upload.NewClient(cfg.Sync.ServerURL, cfg.Sync.APIKey), store, log)
		opts = append(opts, session.WithNotifier(pusher))
		go func() {
			stats, err := pusher.PushPending(ctx)
			if err != nil {
				log.Warn("pending workout sync failed", "error", err)
				return
			}
			if stats.Pending > 0 {
				log.Info("pending workouts synced", "pending", stats.Pending, "sent", stats.Sent, "errored", stats.Errored)
			}
		}()
	}
	manager := session.New(ctx, store, recorder, opts...)

	unit, err := models.ParseUnit(cfg.Profile.Unit)
	if err != nil {
		unit = models.CanonicalUnit
	}

	srv := server.New(server.Deps{
		Manager:     manager,
		Timer:       rest,
		Store:       store,
		Recorder:    recorder,
		Ensemble:    ensemble,
		Importer:    importer.New(store, recorder, log, false),
		DefaultUnit: unit,
		APIKey:      cfg.Auth.APIKey,
	}, log)
	srv.Handle("/mcp", mcp.HTTPHandler(mcp.New(store, recorder, ensemble, Version, log)))

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	// Drain pending session writes before the store closes.
	if err := manager.Close(shutdownCtx); err != nil {
		log.Error("session flush failed", "error", err)
	}
	log.Info("server stopped")
}

func loadStandards(path string) (*standards.Table, error) {
	if path == "" {
		return standards.Default()
	}
	return standards.Load(path)
}

func serveStdio(ds mcp.DataSource, recorder *analytics.Recorder, ensemble *prediction.Ensemble, log *slog.Logger) {
	s := mcp.New(ds, recorder, ensemble, Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp stdio server error", "error", err)
		os.Exit(1)
	}
}
