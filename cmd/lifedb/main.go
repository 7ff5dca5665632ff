// Package main is the entry point for the lifedb server.
//
// lifedb is a local-first storage and sync engine for personal
// life-management data (todos, events, notes, voice notes, routines,
// goals). Local state lives in a byte-capped key/value substrate on disk;
// an optional hosted backend is reconciled against via last-write-wins
// merges. Configuration is read from CLI flags and an optional YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/lifedb/lifedb/internal/backup"
	"github.com/lifedb/lifedb/internal/blob"
	"github.com/lifedb/lifedb/internal/config"
	"github.com/lifedb/lifedb/internal/kvstore"
	"github.com/lifedb/lifedb/internal/remote"
	"github.com/lifedb/lifedb/internal/server"
	"github.com/lifedb/lifedb/internal/snapshot"
	"github.com/lifedb/lifedb/internal/syncsvc"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "lifedb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	remoteURL := flag.String("remote-url", "", "Hosted backend base URL. Empty disables sync")
	remoteToken := flag.String("remote-token", "", "Bearer token for the hosted backend")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop time when running under systemd.
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags win over the config file when explicitly set.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if set["http"] || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = *httpAddr
	}
	if set["data-dir"] || cfg.DataDir == "" {
		cfg.DataDir = *dataDir
	}
	if set["remote-url"] {
		cfg.Remote.URL = *remoteURL
	}
	if set["remote-token"] {
		cfg.Remote.Token = *remoteToken
	}

	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", *logLevel)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	kv, err := kvstore.NewDirStore(filepath.Join(cfg.DataDir, "kv"), cfg.Blobs.SubstrateCapacityBytes)
	if err != nil {
		return fmt.Errorf("failed to initialize substrate: %w", err)
	}
	if err := kv.Watch(ctx); err != nil {
		slog.WarnContext(ctx, "Substrate watcher unavailable", "err", err)
	}

	snap := snapshot.New(kv)
	blobs := blob.NewStore(kv, &blob.ImageCompressor{
		MaxDimension: cfg.Blobs.MaxDimension,
		Quality:      cfg.Blobs.Quality,
	}, blob.Config{
		MaxItemBytes:  cfg.Blobs.MaxItemBytes,
		MaxTotalBytes: cfg.Blobs.MaxTotalBytes,
		MaxDimension:  cfg.Blobs.MaxDimension,
		Quality:       cfg.Blobs.Quality,
	})

	var repo remote.Repository = remote.Disabled{}
	if cfg.Remote.URL != "" {
		repo = remote.NewClient(cfg.Remote.URL, cfg.Remote.Token, cfg.Remote.RequestsPerMinute)
	}
	interval := syncsvc.DefaultInterval
	if cfg.Sync.IntervalMinutes > 0 {
		interval = time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	}
	engine := syncsvc.New(snap, repo, kv, interval)
	if cfg.Remote.URL != "" {
		engine.Start(ctx)
		defer engine.Shutdown()
		slog.InfoContext(ctx, "Sync enabled", "remote", cfg.Remote.URL, "interval", interval)
	} else {
		slog.InfoContext(ctx, "Sync disabled, working on local data alone")
	}

	backups := backup.NewManager(snap, filepath.Join(cfg.DataDir, "backups"))

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := cfg.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	buildVersion, _, _, _ := getBuildInfo()
	srv := server.New(snap, blobs, engine, backups, buildVersion)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "dataDir", cfg.DataDir, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("lifedb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
