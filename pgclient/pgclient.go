// Package pgclient manages connections to the monitored PostgreSQL server.
// The exporter deliberately holds no long-lived pool; every scrape opens a
// fresh connection and closes it when the gather completes, so a PostgreSQL
// restart between scrapes never leaves the exporter with stale state.
package pgclient

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/maropu/pg-stats-exporter/pkg/retry"
)

// Config identifies the PostgreSQL server to scrape. Authentication beyond
// the user name (password files, TLS) is left to libpq-compatible
// environment variables honored by the pgx driver.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"dbname"`
}

// DSN returns the connection string in URL form.
func (c Config) DSN() string {
	hostport := net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
	return fmt.Sprintf("postgres://%s@%s/%s", c.User, hostport, c.Database)
}

// Addr returns the host:port pair for logging.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Validate checks the config for obviously unusable values.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("postgres host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("postgres port %d out of range", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("postgres user cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("postgres dbname cannot be empty")
	}
	return nil
}

// Open establishes a single verified connection to the server. The returned
// handle is capped at one underlying connection; callers own closing it.
func (c Config) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres connection to %s: %w", c.Addr(), err)
	}

	// One scrape, one connection. A pool buys nothing here and would keep
	// sockets open between scrapes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres at %s: %w", c.Addr(), err)
	}

	return db, nil
}

// WaitReady blocks until the server accepts connections or the context is
// canceled. Used at startup so the exporter fails fast on a bad address
// instead of serving 500s forever.
func (c Config) WaitReady(ctx context.Context, logger *slog.Logger) error {
	attempt := 0
	return retry.Do(ctx, retry.Quick(), func() error {
		attempt++
		db, err := c.Open(ctx)
		if err != nil {
			logger.Warn("postgres not ready",
				"addr", c.Addr(),
				"attempt", attempt,
				"error", err)
			return err
		}
		db.Close()
		return nil
	})
}
