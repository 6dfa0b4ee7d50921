package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resonance/internal/config"
)

// clearEnv blanks every variable LoadConfig reads so host settings cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RESONANCE_PORT", "RESONANCE_HOST", "RESONANCE_RATE_LIMIT", "RESONANCE_RATE_BURST",
		"RESONANCE_DATA_PATH", "RESONANCE_DB_PATH", "RESONANCE_VECTOR_BACKEND", "RESONANCE_POSTGRES_DSN",
		"RESONANCE_EMBEDDING_PROVIDER", "RESONANCE_EMBEDDING_URL", "RESONANCE_EMBEDDING_MODEL",
		"RESONANCE_EMBEDDING_API_KEY", "RESONANCE_EMBEDDING_TIMEOUT", "RESONANCE_EMBEDDING_DIMENSIONS",
		"RESONANCE_DECAY_INTERVAL", "RESONANCE_TRAIT_WINDOW", "RESONANCE_ENTROPY_WINDOW",
		"RESONANCE_SEED_LEXICON", "RESONANCE_CALIBRATION_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "Default host must be 127.0.0.1 for security")
	assert.Equal(t, 6464, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:6464", cfg.Addr())
	assert.Equal(t, filepath.Join("./data", "resonance.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, config.VectorBackendSQLite, cfg.Storage.VectorBackend)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, time.Hour, cfg.Engine.DecayInterval)
	assert.Zero(t, cfg.Engine.TraitWindow)
	assert.Equal(t, 50, cfg.Engine.EntropyWindow)
	assert.True(t, cfg.Lexicon.Seed)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESONANCE_HOST", "0.0.0.0")
	t.Setenv("RESONANCE_PORT", "7000")
	t.Setenv("RESONANCE_DATA_PATH", "/var/lib/resonance")
	t.Setenv("RESONANCE_DECAY_INTERVAL", "15m")
	t.Setenv("RESONANCE_TRAIT_WINDOW", "720h")
	t.Setenv("RESONANCE_RATE_LIMIT", "2.5")
	t.Setenv("RESONANCE_SEED_LEXICON", "no")
	t.Setenv("RESONANCE_EMBEDDING_PROVIDER", "none")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Addr())
	assert.Equal(t, "/var/lib/resonance/resonance.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 15*time.Minute, cfg.Engine.DecayInterval)
	assert.Equal(t, 720*time.Hour, cfg.Engine.TraitWindow)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit, 1e-9)
	assert.False(t, cfg.Lexicon.Seed)
	assert.Equal(t, "none", cfg.Embedding.Provider)
}

func TestLoadConfig_UnparseableValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESONANCE_PORT", "not-a-port")
	t.Setenv("RESONANCE_DECAY_INTERVAL", "soon")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 6464, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Engine.DecayInterval)
}

func TestLoadConfig_PGVectorRequiresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESONANCE_VECTOR_BACKEND", "pgvector")

	_, err := config.LoadConfig()
	assert.Error(t, err)

	t.Setenv("RESONANCE_POSTGRES_DSN", "postgres://localhost/resonance?sslmode=disable")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.VectorBackendPGVector, cfg.Storage.VectorBackend)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := config.LoadConfig()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }},
		{"negative rate", func(c *config.Config) { c.Server.RateLimit = -1 }},
		{"rate without burst", func(c *config.Config) { c.Server.RateBurst = 0 }},
		{"unknown backend", func(c *config.Config) { c.Storage.VectorBackend = "faiss" }},
		{"unknown provider", func(c *config.Config) { c.Embedding.Provider = "cohere" }},
		{"openai without key", func(c *config.Config) { c.Embedding.Provider = "openai" }},
		{"negative dimensions", func(c *config.Config) { c.Embedding.Dimensions = -1 }},
		{"negative interval", func(c *config.Config) { c.Engine.DecayInterval = -time.Second }},
		{"zero entropy window", func(c *config.Config) { c.Engine.EntropyWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
