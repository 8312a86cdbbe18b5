package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("DB_URL", "postgres://nutridb:pw@localhost:5432/nutridb")
	t.Setenv("LLM_API_KEY", "sk-test")
	return LoadConfig()
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, SplitModePage, cfg.Ingest.SplitMode)
	assert.Equal(t, 5, cfg.Ingest.Concurrency)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.ProcessTimeout)
	assert.Equal(t, 30000, cfg.Ingest.ChunkSize)
	assert.Equal(t, "pdfseparate", cfg.Ingest.PdfseparateBin)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.False(t, cfg.LLM.Vision)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/nutridb")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("INGEST_SPLIT_MODE", "TEXT")
	t.Setenv("INGEST_CONCURRENCY", "2")
	t.Setenv("INGEST_TIMEOUT", "5m")
	t.Setenv("LLM_VISION", "true")
	t.Setenv("LLM_TEMPERATURE", "0.3")

	cfg := LoadConfig()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// Split mode is normalized to lower case.
	assert.Equal(t, SplitModeText, cfg.Ingest.SplitMode)
	assert.Equal(t, 2, cfg.Ingest.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Ingest.ProcessTimeout)
	assert.True(t, cfg.LLM.Vision)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 0.001)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/nutridb")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("INGEST_CONCURRENCY", "many")
	t.Setenv("INGEST_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 5, cfg.Ingest.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.ProcessTimeout)
}

func TestValidateRequiredValues(t *testing.T) {
	cfg := validConfig(t)
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.Ingest.SplitMode = "pages"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INGEST_SPLIT_MODE")
}
