// Package statsinfo gathers server statistics exposed by the pg_statsinfo
// extension and converts them into Prometheus metric families. Each gather
// opens its own connection and builds its families in a registry scoped to
// that gather, so concurrent scrapes never observe each other's values.
package statsinfo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/maropu/pg-stats-exporter/metric"
	"github.com/maropu/pg-stats-exporter/pgclient"
)

// The cpustats() and tablespaces() set-returning functions come from the
// pg_statsinfo extension; see its pg_statsinfo.sql.in for the full record
// definitions. Only the columns exported as metrics are selected.
const (
	cpuStatsQuery = `
		SELECT
			stats.cpu_id,
			stats.cpu_system,
			stats.cpu_idle,
			stats.cpu_iowait
		FROM
			statsinfo.cpustats() AS stats`

	tablespacesQuery = `
		SELECT
			stats.name,
			stats.location,
			stats.avail,
			stats.total
		FROM
			statsinfo.tablespaces() AS stats`
)

// Collector gathers statistics from one PostgreSQL server.
type Collector struct {
	pg      pgclient.Config
	metrics *metric.Metrics
}

// NewCollector creates a collector for the given server. metrics may be nil
// when gather instrumentation is not wanted, e.g. in tests.
func NewCollector(pg pgclient.Config, metrics *metric.Metrics) *Collector {
	return &Collector{pg: pg, metrics: metrics}
}

// Gather connects to the server, runs all statistics queries and returns
// the resulting metric families. A failure in any query fails the whole
// gather; no partial families are returned.
func (c *Collector) Gather(ctx context.Context) ([]*dto.MetricFamily, error) {
	start := time.Now()
	families, err := c.gather(ctx)
	if c.metrics != nil {
		c.metrics.RecordGather(time.Since(start), err)
	}
	return families, err
}

func (c *Collector) gather(ctx context.Context) ([]*dto.MetricFamily, error) {
	db, err := c.pg.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	// Pedantic so malformed metric names from unexpected tablespace or
	// cpu_id values surface as errors instead of corrupt exposition text.
	registry := prometheus.NewPedanticRegistry()

	if err := gatherCPUStats(ctx, db, registry); err != nil {
		return nil, fmt.Errorf("gather cpustats: %w", err)
	}
	if err := gatherTablespaces(ctx, db, registry); err != nil {
		return nil, fmt.Errorf("gather tablespaces: %w", err)
	}

	return registry.Gather()
}

func gatherCPUStats(ctx context.Context, db *sql.DB, registry *prometheus.Registry) error {
	rows, err := db.QueryContext(ctx, cpuStatsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cpuID string
		var system, idle, iowait int64
		if err := rows.Scan(&cpuID, &system, &idle, &iowait); err != nil {
			return err
		}

		prefix := fmt.Sprintf("cpustats_%s", cpuID)
		stats := []struct {
			name  string
			help  string
			value int64
		}{
			{"cpu_system", "The amount of time CPUs spent in running the operating system functions", system},
			{"cpu_idle", "The amount of time CPUs weren't  busy", idle},
			{"cpu_iowait", "The amount of time CPUs where idle during which the system had pending I/O requests", iowait},
		}
		for _, s := range stats {
			if err := registerGauge(registry, prefix+"_"+s.name, s.help, s.value); err != nil {
				return err
			}
		}
	}

	return rows.Err()
}

func gatherTablespaces(ctx context.Context, db *sql.DB, registry *prometheus.Registry) error {
	rows, err := db.QueryContext(ctx, tablespacesQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, location string
		var avail, total int64
		if err := rows.Scan(&name, &location, &avail, &total); err != nil {
			return err
		}

		prefix := fmt.Sprintf("tablespaces_%s", name)
		if err := registerGauge(registry, prefix+"_avail",
			fmt.Sprintf("Available space in %s", location), avail); err != nil {
			return err
		}
		if err := registerGauge(registry, prefix+"_total",
			fmt.Sprintf("Total space in %s", location), total); err != nil {
			return err
		}
	}

	return rows.Err()
}

func registerGauge(registry *prometheus.Registry, name, help string, value int64) error {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := registry.Register(gauge); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	gauge.Set(float64(value))
	return nil
}
