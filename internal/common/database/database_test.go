package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copro-diagnostic/internal/common/config"
	"copro-diagnostic/internal/common/errors"
)

func TestNewPostgres_ConfiguresPool(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host:           "localhost",
		Port:           5432,
		Database:       "copro",
		User:           "copro",
		Password:       "secret",
		SSLMode:        "disable",
		MaxConnections: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, client.DB.Stats().MaxOpenConnections)
	assert.NoError(t, client.Close())
}

func TestClose_NilSafe(t *testing.T) {
	var pg *PostgresClient
	var rdb *RedisClient
	assert.NoError(t, pg.Close())
	assert.NoError(t, rdb.Close())
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	err := client.Ping(context.Background())
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCacheUnavailable, stdErr.Code)
}

func TestElasticsearch_Ping(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{
		Addresses: []string{srv.URL},
		Index:     "market_stats",
	})
	require.NoError(t, err)
	assert.Equal(t, "market_stats", client.Index)
	require.NoError(t, client.Ping(context.Background()))

	status.Store(http.StatusUnauthorized)
	err = client.Ping(context.Background())
	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeElasticsearchConnectionFailed, stdErr.Code)
}
