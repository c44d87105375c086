package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mixctl/mixctl-core/internal/bus"
	"github.com/mixctl/mixctl-core/internal/config"
	"github.com/mixctl/mixctl-core/internal/dictionary"
	"github.com/mixctl/mixctl-core/internal/engine"
	"github.com/mixctl/mixctl-core/internal/journal"
	"github.com/mixctl/mixctl-core/internal/natsserver"
	"github.com/mixctl/mixctl-core/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "mixctl.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("MIXCTL_TELEMETRY_LOG_LEVEL"))}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedded, err := natsserver.Start(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to start embedded bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer embedded.Shutdown()

	busClient, err := bus.Connect(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to connect to bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	dict, err := dictionary.Open(ctx, dictionary.Config{
		Path:          cfg.Dictionary.Path,
		CacheSize:     cfg.Dictionary.CacheSize,
		VacuumOnStart: cfg.Dictionary.VacuumOnStart,
	}, logger)
	if err != nil {
		logger.Error("failed to open dictionary", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dict.Close()

	jour, err := journal.Open(ctx, journal.Config{
		Path:          cfg.Journal.Path,
		RetentionMode: cfg.Journal.RetentionMode,
		RetentionDays: cfg.Journal.RetentionDays,
		MaxSessions:   cfg.Journal.MaxSessions,
		VacuumOnStart: cfg.Journal.VacuumOnStart,
	}, logger)
	if err != nil {
		logger.Error("failed to open journal", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jour.Close()

	svc := engine.NewService(ctx, cfg, busClient, dict, jour, logger)
	if err := svc.Start(); err != nil {
		logger.Error("failed to start engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()

	rt := runtime.New(cfg, logger)
	rt.AddHealthCheck("bus", busClient.Healthy)
	rt.AddHealthCheck("engine", svc.Healthy)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
