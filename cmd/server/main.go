package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arimura/mangawatch/internal/config"
	"github.com/arimura/mangawatch/internal/database"
	apihttp "github.com/arimura/mangawatch/internal/http"
	"github.com/arimura/mangawatch/internal/ingestion"
	"github.com/arimura/mangawatch/internal/notifications"
	"github.com/arimura/mangawatch/internal/plugins"
	"github.com/arimura/mangawatch/internal/plugins/mangadex"
	"github.com/arimura/mangawatch/internal/registry"
	"github.com/arimura/mangawatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open sqlite", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.ApplyMigrations(db, cfg.MigrationsPath); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	declarative, err := plugins.LoadDeclarativeDir(cfg.PluginsPath)
	if err != nil {
		slog.Warn("declarative plugins loaded with warnings", "error", err)
	}

	reg := registry.New(nil)
	for _, p := range declarative {
		reg.Register(p)
	}
	reg.Register(mangadex.New())

	pipeline := ingestion.New(db, reg)
	notifier := buildNotifier()

	refresher := scheduler.New(db, pipeline, notifier, scheduler.Config{
		UpdateInterval: time.Duration(cfg.PollingMinutes) * time.Minute,
	}, logger)

	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	if cfg.PollingEnabled {
		refresher.Start(schedulerCtx)
	}

	app := apihttp.NewServerWithRefresher(cfg, db, reg, refresher)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "env", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down server")
	schedulerCancel()
	refresher.StopWait(2 * time.Second)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildNotifier wires a webhook notifier when NOTIFY_WEBHOOK_URL is set,
// falling back to a no-op so the refresh loop never blocks on delivery.
func buildNotifier() notifications.Notifier {
	webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL")
	if webhookURL == "" {
		return notifications.NoopNotifier{}
	}
	webhook, err := notifications.NewWebhookNotifier(webhookURL)
	if err != nil {
		slog.Warn("webhook notifier disabled", "error", err)
		return notifications.NoopNotifier{}
	}
	return webhook
}
