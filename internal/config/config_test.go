package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("RECORD_DOMAIN_TAG", "")
	t.Setenv("FAUCET_ENABLED", "")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "")
	t.Setenv("IDEMPOTENCY_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Address())
	require.Equal(t, 5000, cfg.RecordSpace)
	require.Equal(t, "bankaccount", cfg.DomainTag)
	require.Equal(t, uint64(3480), cfg.Rent.LamportsPerByteYear)
	require.True(t, cfg.FaucetEnabled)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadRequiresBackendsOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/pdabank")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PORT", ":9000")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("RECORD_SPACE", "256")
	t.Setenv("RENT_EXEMPTION_YEARS", "1")
	t.Setenv("LOCK_TTL", "750ms")
	t.Setenv("FAUCET_ENABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Address())
	require.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	require.Equal(t, 256, cfg.RecordSpace)
	require.Equal(t, uint64(1), cfg.Rent.ExemptionYears)
	require.Equal(t, 750*time.Millisecond, cfg.LockTTL)
	require.False(t, cfg.FaucetEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("RECORD_SPACE", "-1")
	_, err := Load()
	require.ErrorContains(t, err, "RECORD_SPACE")
}
