package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("CATALOG_APPLICATION_ID", "app-id")
	t.Setenv("SCORER_API_KEY", "key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Cache.EphemeralTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.PersistentTTL)
	assert.Equal(t, 9, cfg.Ranking.OutputCap)
	assert.Equal(t, 70.0, cfg.Ranking.MinScore)
	assert.Equal(t, 3, cfg.Scorer.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Scorer.BaseDelay)
	assert.Equal(t, 5, cfg.Scorer.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.Scorer.BreakerCooldown)
	assert.Equal(t, 3000, cfg.Catalog.MinPriceFilter)
	assert.Equal(t, "memory", cfg.Session.Store)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "CACHE_EPHEMERAL_TTL", val: "soon"},
		{name: "bad int", key: "RANKING_OUTPUT_CAP", val: "nine"},
		{name: "too many categories", key: "CATALOG_MAX_CATEGORIES", val: "11"},
		{name: "unknown provider", key: "SCORER_PROVIDER", val: "oracle"},
		{name: "zero attempts", key: "SCORER_ATTEMPTS", val: "0"},
		{name: "zero breaker failures", key: "SCORER_BREAKER_FAILURES", val: "0"},
		{name: "bad breaker cooldown", key: "SCORER_BREAKER_COOLDOWN", val: "later"},
		{name: "unknown session store", key: "SESSION_STORE", val: "disk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadBreakerSettings(t *testing.T) {
	setRequired(t)
	t.Setenv("SCORER_BREAKER_FAILURES", "8")
	t.Setenv("SCORER_BREAKER_COOLDOWN", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Scorer.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Scorer.BreakerCooldown)
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("SCORER_API_KEY", "")

	_, err := Load()
	assert.EqualError(t, err, "missing scorer api key")
}

func TestLoadModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	body := `modules:
  - name: price_fit
    enabled: true
    weight: 0.4
    priority: 2
  - name: diversity
    enabled: false
    weight: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	modules, err := LoadModules(path)
	require.NoError(t, err)
	require.Len(t, modules, 2)

	assert.Equal(t, "price_fit", modules[0].Name)
	assert.True(t, modules[0].Enabled)
	assert.Equal(t, 0.4, modules[0].Weight)
	assert.Equal(t, 2, modules[0].Priority)
	assert.False(t, modules[1].Enabled)
}

func TestLoadModulesRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	body := `modules:
  - name: price_fit
    weight: 0.4
  - name: price_fit
    weight: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := LoadModules(path)
	assert.Error(t, err)
}
