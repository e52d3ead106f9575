package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURL(t *testing.T) {
	pool, err := New(context.Background(), DefaultConfig(""))
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
}

func TestPoolHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	pool := FromDB(db)

	mock.ExpectPing()
	assert.NoError(t, pool.Health(context.Background()))
	assert.NoError(t, pool.RegisterMetrics(prometheus.NewRegistry()))

	mock.ExpectClose()
	require.NoError(t, pool.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
