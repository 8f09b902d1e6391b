// Package main implements the entry point for pg-stats-exporter, a
// Prometheus exporter publishing statistics collected by the pg_statsinfo
// PostgreSQL extension.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/maropu/pg-stats-exporter/config"
	"github.com/maropu/pg-stats-exporter/metric"
	"github.com/maropu/pg-stats-exporter/server"
	"github.com/maropu/pg-stats-exporter/statsinfo"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "pg-stats-exporter"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Exporter failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}

	cfg, err := buildConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fail fast on an unreachable server instead of serving 500s forever.
	logger.Info("waiting for postgres", "addr", cfg.Postgres.Addr(), "dbname", cfg.Postgres.Database)
	if err := cfg.Postgres.WaitReady(ctx, logger); err != nil {
		return fmt.Errorf("postgres at %s never became ready: %w", cfg.Postgres.Addr(), err)
	}

	registry := metric.NewRegistry()
	collector := statsinfo.NewCollector(cfg.Postgres, registry.Metrics)

	srv := server.New(server.Config{
		ListenAddr:      cfg.ListenAddr,
		BufferSize:      cfg.Stream.BufferSize,
		Workers:         cfg.Stream.Workers,
		QueueSize:       cfg.Stream.QueueSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger, registry, collector)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start(ctx)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("exporter stopped")
	return nil
}

// buildConfig layers the configuration sources: built-in defaults, then
// the optional config file, then any flag given explicitly on the
// command line.
func buildConfig(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()

	if cliCfg.ConfigPath != "" {
		loaded, err := config.LoadFile(cliCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = cliCfg.ListenAddr
		case "postgres":
			cfg.Postgres.Host = cliCfg.PostgresHost
		case "port":
			cfg.Postgres.Port = cliCfg.PostgresPort
		case "user":
			cfg.Postgres.User = cliCfg.PostgresUser
		case "dbname":
			cfg.Postgres.Database = cliCfg.PostgresDB
		case "log-level":
			cfg.Log.Level = cliCfg.LogLevel
		case "log-format":
			cfg.Log.Format = cliCfg.LogFormat
		case "shutdown-timeout":
			cfg.ShutdownTimeout = cliCfg.ShutdownTimeout
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
