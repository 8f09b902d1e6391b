package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	ListenAddr      string
	PostgresHost    string
	PostgresPort    int
	PostgresUser    string
	PostgresDB      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("PG_STATS_EXPORTER_CONFIG", ""),
		"Path to YAML configuration file, optional (env: PG_STATS_EXPORTER_CONFIG)")

	flag.StringVar(&cfg.ListenAddr, "listen",
		getEnv("PG_STATS_EXPORTER_LISTEN", "127.0.0.1:9753"),
		"Address to serve metrics on (env: PG_STATS_EXPORTER_LISTEN)")

	flag.StringVar(&cfg.PostgresHost, "postgres",
		getEnv("PG_STATS_EXPORTER_POSTGRES", "127.0.0.1"),
		"PostgreSQL server host (env: PG_STATS_EXPORTER_POSTGRES)")

	flag.IntVar(&cfg.PostgresPort, "port",
		getEnvInt("PG_STATS_EXPORTER_PORT", 5432),
		"PostgreSQL server port (env: PG_STATS_EXPORTER_PORT)")

	flag.StringVar(&cfg.PostgresUser, "user",
		getEnv("PG_STATS_EXPORTER_USER", "docker"),
		"PostgreSQL user name (env: PG_STATS_EXPORTER_USER)")

	flag.StringVar(&cfg.PostgresDB, "dbname",
		getEnv("PG_STATS_EXPORTER_DBNAME", "postgres"),
		"PostgreSQL database name (env: PG_STATS_EXPORTER_DBNAME)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("PG_STATS_EXPORTER_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: PG_STATS_EXPORTER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("PG_STATS_EXPORTER_LOG_FORMAT", "json"),
		"Log format: json, text (env: PG_STATS_EXPORTER_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("PG_STATS_EXPORTER_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: PG_STATS_EXPORTER_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Prometheus exporter for pg_statsinfo statistics

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Scrape a local PostgreSQL server
  %s --postgres=127.0.0.1 --user=docker --dbname=postgres

  # Serve on all interfaces
  %s --listen=0.0.0.0:9753

  # Run with a config file and debug logging
  %s --config=/etc/pg-stats-exporter/config.yaml --log-level=debug --log-format=text

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
