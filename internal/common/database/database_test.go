package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"catalog-gateway/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	c := &PostgresClient{DB: db}
	defer c.Close()

	mock.ExpectPing()
	require.NoError(t, c.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, c.Ping(context.Background()), sql.ErrConnDone)
}

func TestNewElasticsearch_RequiresAddress(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)

	c, err := NewElasticsearch(config.ElasticsearchConfig{URL: "http://localhost:9200"})
	require.NoError(t, err)
	assert.Equal(t, "elasticsearch", c.Name())
}

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Name() string               { return f.name }
func (f fakeChecker) Ping(context.Context) error { return f.err }

func TestCheckAll(t *testing.T) {
	status, err := CheckAll(context.Background(), time.Second,
		fakeChecker{name: "redis"},
		fakeChecker{name: "postgres", err: errors.New("connection refused")},
	)

	assert.Equal(t, map[string]string{"redis": "up", "postgres": "down"}, status)
	assert.ErrorContains(t, err, "postgres: connection refused")
}
