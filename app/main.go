package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/api"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/cfg"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/changelog"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/database"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/feed"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tasks"
	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Terraform Feature Lag Tracker", "version", appCfg.Version, "once", appCfg.Once)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.CloudsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load cloud configurations", "dir", appCfg.CloudsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Cloud configurations loaded", "count", configCache.GetConfigCount(), "enabled", len(configCache.GetEnabledConfigs()))

	cloudRepo := database.NewCloudRepository(db)
	recordRepo := database.NewRecordRepository(db)

	snapshot := tasks.NewSnapshotUpdater(database.NewFileSnapshotStore(appCfg.SnapshotPath), recordRepo)
	if n, err := snapshot.Sync(context.Background()); err != nil {
		slog.Error("Failed to load snapshot", "path", appCfg.SnapshotPath, "error", err)
		os.Exit(1)
	} else {
		slog.Info("Snapshot loaded", "path", appCfg.SnapshotPath, "records", n)
	}

	httpClient := &http.Client{}
	githubOpts := []changelog.Option{changelog.WithPacing(appCfg.PacingDuration())}
	if appCfg.GitHubToken != "" {
		githubOpts = append(githubOpts, changelog.WithToken(appCfg.GitHubToken))
	}

	deps := &tasks.Deps{
		Fetcher:           feed.NewFetcher(httpClient, appCfg.UserAgent),
		Parser:            feed.NewParser(),
		Filterer:          feed.NewFilterer(),
		Changelog:         changelog.NewClient(httpClient, appCfg.UserAgent, githubOpts...),
		CloudRepo:         cloudRepo,
		AnnouncementRepo:  database.NewAnnouncementRepository(db),
		ReleaseRepo:       database.NewReleaseRepository(db),
		Snapshot:          snapshot,
		PacingDelay:       appCfg.PacingDuration(),
		BackfillThreshold: appCfg.BackfillThreshold,
		BackfillPages:     appCfg.BackfillPages,
	}

	if appCfg.Once {
		code := runOnce(configCache, deps)
		db.Close()
		os.Exit(code)
	}

	scheduler := tasks.NewScheduler(configCache, cloudRepo, deps, appCfg.WorkerCount, appCfg.SchedulerDuration())
	scheduler.Start()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerDuration())

	generator := feed.NewGenerator(appCfg.BaseUrl, appCfg.Version)
	apiHandler := api.NewHandler(configCache, cloudRepo, recordRepo, generator, scheduler, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Shutdown complete")
}

// runOnce tracks every enabled cloud a single time and returns the exit
// code: 1 only when nothing at all could be collected.
func runOnce(configCache *feed.ConfigCache, deps *tasks.Deps) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := tasks.RunOnce(ctx, configCache, deps)
	for name, result := range results {
		slog.Info("Cloud tracked",
			"cloud", name,
			"announcements", result.Announcements,
			"releases", result.Releases,
			"reconciled", result.Reconciled,
			"supported", result.Supported)
	}

	if errors.Is(err, tracker.ErrNoInput) {
		slog.Error("No announcements or changelog entries collected", "error", err)
		return 1
	}
	if err != nil {
		slog.Warn("Some clouds failed", "error", err)
	}
	return 0
}
