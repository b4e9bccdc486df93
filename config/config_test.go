package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "cohort-metrics.db", cfg.Database.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Engine.AggregateCacheTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestFromMapOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"APP_ENV":             "production",
		"DB_DRIVER":           "Postgres",
		"DATABASE_URL":        "postgres://u:p@db:5432/metrics",
		"REDIS_ENABLED":       "true",
		"REDIS_PORT":          "6380",
		"AGGREGATE_CACHE_TTL": "2m",
		"HTTP_PORT":           "9000",
		"LOG_FORMAT":          "console",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 2*time.Minute, cfg.Engine.AggregateCacheTTL)
	assert.Equal(t, 9000, cfg.HTTP.Port)
}

func TestValidateCollectsErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL is required"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER must be"},
		{"sqlite in production", map[string]string{"APP_ENV": "production"}, "must be postgres in production"},
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT must be"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromMapRejectsMalformedValues(t *testing.T) {
	_, err := FromMap(map[string]string{"DB_QUERY_TIMEOUT": "soon"})
	assert.Error(t, err)
}
