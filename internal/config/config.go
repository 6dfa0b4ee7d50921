// Package config provides configuration management for Resonance.
// It loads settings from environment variables with the RESONANCE_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Vector backends.
const (
	VectorBackendSQLite   = "sqlite"
	VectorBackendPGVector = "pgvector"
)

// Config holds all configuration settings for the Resonance application.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Engine    EngineConfig
	Lexicon   LexiconConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 6464)
	Host string // Server host (default: 127.0.0.1)

	RateLimit float64 // Sustained API requests per second, 0 disables (default: 20)
	RateBurst int     // Burst size (default: 40)
}

// StorageConfig contains database and vector index configuration.
type StorageConfig struct {
	DataPath      string // Path to data directory (default: ./data)
	DatabasePath  string // SQLite file (default: <DataPath>/resonance.db)
	VectorBackend string // sqlite or pgvector (default: sqlite)
	PostgresDSN   string // Required when VectorBackend is pgvector
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider string        // ollama, openai or none (default: ollama)
	URL      string        // Provider base URL (default: provider specific)
	Model    string        // Embedding model (default: provider specific)
	APIKey   string        // API key for hosted providers
	Timeout  time.Duration // Per-request timeout (default: provider specific)

	// Dimensions requests shortened vectors from providers that support it (0 = model default).
	Dimensions int
}

// EngineConfig contains engine scheduling and aggregation settings.
type EngineConfig struct {
	DecayInterval time.Duration // Time between decay cycles, 0 disables (default: 1h)
	TraitWindow   time.Duration // Trait aggregation window, 0 means lifetime (default: 0)
	EntropyWindow int           // Recent feelings used for label entropy (default: 50)
}

// LexiconConfig contains emotion lexicon settings.
type LexiconConfig struct {
	Seed            bool   // Seed built-in emotions on startup (default: true)
	CalibrationPath string // Optional YAML calibration file applied on startup
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// All environment variables use the RESONANCE_ prefix.
func LoadConfig() (*Config, error) {
	dataPath := getEnv("RESONANCE_DATA_PATH", "./data")

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnvInt("RESONANCE_PORT", 6464),
			Host:      getEnv("RESONANCE_HOST", "127.0.0.1"),
			RateLimit: getEnvFloat("RESONANCE_RATE_LIMIT", 20),
			RateBurst: getEnvInt("RESONANCE_RATE_BURST", 40),
		},
		Storage: StorageConfig{
			DataPath:      dataPath,
			DatabasePath:  getEnv("RESONANCE_DB_PATH", filepath.Join(dataPath, "resonance.db")),
			VectorBackend: getEnv("RESONANCE_VECTOR_BACKEND", VectorBackendSQLite),
			PostgresDSN:   getEnv("RESONANCE_POSTGRES_DSN", ""),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("RESONANCE_EMBEDDING_PROVIDER", "ollama"),
			URL:      getEnv("RESONANCE_EMBEDDING_URL", ""),
			Model:    getEnv("RESONANCE_EMBEDDING_MODEL", ""),
			APIKey:   getEnv("RESONANCE_EMBEDDING_API_KEY", ""),
			Timeout:  getEnvDuration("RESONANCE_EMBEDDING_TIMEOUT", 0),

			Dimensions: getEnvInt("RESONANCE_EMBEDDING_DIMENSIONS", 0),
		},
		Engine: EngineConfig{
			DecayInterval: getEnvDuration("RESONANCE_DECAY_INTERVAL", time.Hour),
			TraitWindow:   getEnvDuration("RESONANCE_TRAIT_WINDOW", 0),
			EntropyWindow: getEnvInt("RESONANCE_ENTROPY_WINDOW", 50),
		},
		Lexicon: LexiconConfig{
			Seed:            getEnvBool("RESONANCE_SEED_LEXICON", true),
			CalibrationPath: getEnv("RESONANCE_CALIBRATION_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("config: rate burst must be >= 1 when rate limiting, got %d", c.Server.RateBurst)
	}

	switch c.Storage.VectorBackend {
	case VectorBackendSQLite:
	case VectorBackendPGVector:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: RESONANCE_POSTGRES_DSN is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("config: unknown vector backend %q", c.Storage.VectorBackend)
	}

	switch c.Embedding.Provider {
	case "ollama", "none":
	case "openai":
		if c.Embedding.APIKey == "" {
			return errors.New("config: RESONANCE_EMBEDDING_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("config: embedding dimensions must be >= 0, got %d", c.Embedding.Dimensions)
	}

	if c.Engine.DecayInterval < 0 || c.Engine.TraitWindow < 0 {
		return errors.New("config: durations must be >= 0")
	}
	if c.Engine.EntropyWindow < 1 {
		return fmt.Errorf("config: entropy window must be >= 1, got %d", c.Engine.EntropyWindow)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "30m") or
// returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
