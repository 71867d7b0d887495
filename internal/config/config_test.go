package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("TICKET_REVENUE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, "70000", cfg.Ticket.Revenue.String())
	assert.Equal(t, 3, cfg.Ticket.MaxMedia)
	assert.Equal(t, 8, cfg.Training.OpenHour)
	assert.Equal(t, 18, cfg.Training.CloseHour)
	assert.Equal(t, -5, cfg.Training.UTCOffsetHours)
	assert.Equal(t, "local", cfg.Storage.Driver)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TICKET_REVENUE", "85000.50")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "5")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, "85000.5", cfg.Ticket.Revenue.String())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Window())
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("revenue", func(t *testing.T) {
		t.Setenv("TICKET_REVENUE", "setenta")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("working day", func(t *testing.T) {
		t.Setenv("TRAINING_OPEN_HOUR", "18")
		t.Setenv("TRAINING_CLOSE_HOUR", "8")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("s3 bucket", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "S3")
		t.Setenv("STORAGE_S3_BUCKET", "")
		_, err := Load()
		assert.Error(t, err)
	})
}
