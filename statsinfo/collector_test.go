package statsinfo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyByName(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestGatherCPUStats_EmitsOneFamilyPerColumnPerRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`statsinfo\.cpustats\(\)`).WillReturnRows(
		sqlmock.NewRows([]string{"cpu_id", "cpu_system", "cpu_idle", "cpu_iowait"}).
			AddRow("cpu0", 120, 9000, 40).
			AddRow("cpu1", 80, 9500, 10))

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, gatherCPUStats(context.Background(), db, registry))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)

	mf := familyByName(families, "cpustats_cpu0_cpu_system")
	require.NotNil(t, mf)
	assert.Equal(t, dto.MetricType_GAUGE, mf.GetType())
	assert.Equal(t, 120.0, mf.GetMetric()[0].GetGauge().GetValue())

	mf = familyByName(families, "cpustats_cpu1_cpu_iowait")
	require.NotNil(t, mf)
	assert.Equal(t, 10.0, mf.GetMetric()[0].GetGauge().GetValue())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatherTablespaces_HelpNamesLocation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`statsinfo\.tablespaces\(\)`).WillReturnRows(
		sqlmock.NewRows([]string{"name", "location", "avail", "total"}).
			AddRow("pg_default", "/var/lib/postgresql/data", 1024, 4096))

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, gatherTablespaces(context.Background(), db, registry))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	avail := familyByName(families, "tablespaces_pg_default_avail")
	require.NotNil(t, avail)
	assert.Equal(t, "Available space in /var/lib/postgresql/data", avail.GetHelp())
	assert.Equal(t, 1024.0, avail.GetMetric()[0].GetGauge().GetValue())

	total := familyByName(families, "tablespaces_pg_default_total")
	require.NotNil(t, total)
	assert.Equal(t, "Total space in /var/lib/postgresql/data", total.GetHelp())
	assert.Equal(t, 4096.0, total.GetMetric()[0].GetGauge().GetValue())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatherCPUStats_ZeroRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`statsinfo\.cpustats\(\)`).WillReturnRows(
		sqlmock.NewRows([]string{"cpu_id", "cpu_system", "cpu_idle", "cpu_iowait"}))

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, gatherCPUStats(context.Background(), db, registry))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestGatherCPUStats_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	queryErr := errors.New(`function statsinfo.cpustats() does not exist`)
	mock.ExpectQuery(`statsinfo\.cpustats\(\)`).WillReturnError(queryErr)

	registry := prometheus.NewPedanticRegistry()
	err = gatherCPUStats(context.Background(), db, registry)
	assert.ErrorIs(t, err, queryErr)
}

func TestGatherTablespaces_InvalidMetricName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Tablespace names pass through into metric names unescaped; a name
	// with characters outside the metric charset must fail the gather.
	mock.ExpectQuery(`statsinfo\.tablespaces\(\)`).WillReturnRows(
		sqlmock.NewRows([]string{"name", "location", "avail", "total"}).
			AddRow("bad-name", "/srv/ts", 1, 2))

	registry := prometheus.NewPedanticRegistry()
	err = gatherTablespaces(context.Background(), db, registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-name")
}
