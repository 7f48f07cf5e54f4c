package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tickertronix/Tickertronix-Open/internal/database"
	"github.com/Tickertronix/Tickertronix-Open/internal/modules/settings"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.APIHost)
	assert.Equal(t, 5001, cfg.APIPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 300, int(cfg.UpdateInterval.Seconds()))
	assert.Equal(t, 3600, int(cfg.ForexPoll.Seconds()))
	assert.Equal(t, 8, cfg.ForexBatchSize)
	assert.Equal(t, 800, cfg.ForexCreditsPerDay)
	assert.Equal(t, "tickertronixhub.local", cfg.HubBaseHost)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "8080")
	t.Setenv("UPDATE_INTERVAL_SECONDS", "120")
	t.Setenv("FOREX_BATCH_SIZE", "20")
	t.Setenv("ALPACA_API_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 120, int(cfg.UpdateInterval.Seconds()))
	assert.Equal(t, 8, cfg.ForexBatchSize, "batch size is capped at 8")
	assert.Equal(t, "env-key", cfg.AlpacaAPIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("API_PORT", "99999")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsShortInterval(t *testing.T) {
	t.Setenv("UPDATE_INTERVAL_SECONDS", "30")
	_, err := Load()
	assert.Error(t, err)
}

func TestUpdateFromSettingsPrefersStoredCredentials(t *testing.T) {
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "hub.db"),
		Name: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	repo := settings.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.Set(settings.KeyAlpacaAPIKey, "stored-key"))
	require.NoError(t, repo.Set(settings.KeyAlpacaAPISecret, "stored-secret"))

	cfg := &Config{
		AlpacaAPIKey:     "env-key",
		AlpacaAPISecret:  "env-secret",
		TwelveDataAPIKey: "env-td-key",
	}
	require.NoError(t, cfg.UpdateFromSettings(repo))

	assert.Equal(t, "stored-key", cfg.AlpacaAPIKey)
	assert.Equal(t, "stored-secret", cfg.AlpacaAPISecret)
	// Nothing stored for this one, so the environment value stands.
	assert.Equal(t, "env-td-key", cfg.TwelveDataAPIKey)
}
