package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/contactgraph/internal/config"
	"github.com/scrypster/contactgraph/internal/graph"
	"github.com/scrypster/contactgraph/internal/normalize"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONTACTGRAPH_STORAGE_ENGINE", "CONTACTGRAPH_DATA_PATH", "CONTACTGRAPH_POSTGRES_DSN",
		"CONTACTGRAPH_HALF_LIFE", "CONTACTGRAPH_REFERENCE_TIME", "CONTACTGRAPH_DISABLE_DECAY",
		"CONTACTGRAPH_DEFAULT_COUNTRY_CODE", "CONTACTGRAPH_INTERNATIONAL_PREFIX",
		"CONTACTGRAPH_TRUNK_PREFIX", "CONTACTGRAPH_NATIONAL_NUMBER_LENGTH",
		"CONTACTGRAPH_LOG_LEVEL", "CONTACTGRAPH_LOG_FORMAT", "CONTACTGRAPH_POLICY_FILE",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.EngineSQLite, cfg.Storage.StorageEngine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, filepath.Join("data", "contactgraph.db"), cfg.DBPath())
	assert.Equal(t, graph.DefaultHalfLife, cfg.Graph.HalfLife)
	assert.False(t, cfg.Graph.FixedTime)
	assert.Equal(t, normalize.DefaultPhoneOptions, cfg.Phone)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTACTGRAPH_HALF_LIFE", "30d")
	t.Setenv("CONTACTGRAPH_REFERENCE_TIME", "2026-01-02T03:04:05Z")
	t.Setenv("CONTACTGRAPH_DEFAULT_COUNTRY_CODE", "44")
	t.Setenv("CONTACTGRAPH_NATIONAL_NUMBER_LENGTH", "not-a-number")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, cfg.Graph.HalfLife)
	assert.True(t, cfg.Graph.FixedTime)
	assert.Equal(t, "44", cfg.Phone.DefaultCountryCode)
	assert.Equal(t, 10, cfg.Phone.NationalNumberLength, "unparseable ints fall back to the default")

	p := cfg.GraphPolicy(time.Now())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), p.Now)
}

func TestLoadConfig_DisableDecay(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTACTGRAPH_DISABLE_DECAY", "yes")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Graph.HalfLife)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTACTGRAPH_HALF_LIFE", "soon")
	_, err := config.LoadConfig()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CONTACTGRAPH_STORAGE_ENGINE", "mongodb")
	_, err = config.LoadConfig()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CONTACTGRAPH_STORAGE_ENGINE", "postgres")
	_, err = config.LoadConfig()
	assert.Error(t, err, "postgres without a DSN must be rejected")
}

func TestGraphPolicy_UsesNewestInteractionWithoutFixedTime(t *testing.T) {
	clearEnv(t)
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	latest := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, latest, cfg.GraphPolicy(latest).Now)
	assert.True(t, cfg.GraphPolicy(time.Time{}).Now.IsZero(), "no interactions leaves decay off")
}

func TestLoad_PolicyFile(t *testing.T) {
	clearEnv(t)
	path := writePolicy(t, `
graph:
  half_life: 720h
  reference_time: "2026-02-01T00:00:00Z"
phone:
  default_country_code: "44"
  international_prefix: "00"
  trunk_prefix: "0"
  national_number_length: 10
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 720*time.Hour, cfg.Graph.HalfLife)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), cfg.Graph.ReferenceTime)
	assert.Equal(t, "44", cfg.Phone.DefaultCountryCode)

	h, err := cfg.Normalizer().PhoneNumber("020 7946 0958")
	require.NoError(t, err)
	assert.Equal(t, "+442079460958", h.Value)
}

func TestLoad_PolicyFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTACTGRAPH_POLICY_FILE", writePolicy(t, "graph:\n  half_life: 7d\n"))
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Graph.HalfLife)
	assert.Equal(t, normalize.DefaultPhoneOptions, cfg.Phone)
}

func TestLoad_PolicyFileErrors(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writePolicy(t, "graph:\n  half_life: whenever\n"))
	assert.Error(t, err)

	_, err = config.Load(writePolicy(t, "graph:\n  reference_time: yesterday\n"))
	assert.Error(t, err)

	_, err = config.Load(writePolicy(t, "unexpected: true\n"))
	assert.Error(t, err)
}

func TestParseHalfLife(t *testing.T) {
	for in, want := range map[string]time.Duration{
		"0":    0,
		"90d":  90 * 24 * time.Hour,
		"36h":  36 * time.Hour,
		" 1d ": 24 * time.Hour,
	} {
		got, err := config.ParseHalfLife(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := config.ParseHalfLife("xd")
	assert.Error(t, err)
}
