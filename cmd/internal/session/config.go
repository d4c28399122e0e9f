package session

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"glowguard/cmd/security/token"
)

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Config defines how credentials are persisted.
//
// Database connectivity for the postgres backend lives in the app config,
// which owns the pool.
type Config struct {
	// Backend is the store kind.
	Backend Backend

	// Namespace separates credential pairs that share a Redis or Postgres backend.
	Namespace string

	// FilePath is the file backend location.
	FilePath string

	// Passphrase, when set, seals the file backend at rest.
	Passphrase string

	// Redis connection settings.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig returns a file-backed configuration under the user config dir.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendFile,
		Namespace: "default",
		FilePath:  defaultFilePath(),
		RedisAddr: "localhost:6379",
	}
}

func defaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "glowguard", "session.json")
}

// LoadConfigFromEnv loads store configuration from environment variables.
//
// Optional:
//   - GLOWGUARD_STORE (memory|file|redis|postgres)
//   - GLOWGUARD_STORE_NAMESPACE
//   - GLOWGUARD_STORE_PATH
//   - GLOWGUARD_STORE_PASSPHRASE
//   - GLOWGUARD_REDIS_ADDR, GLOWGUARD_REDIS_PASSWORD, GLOWGUARD_REDIS_DB
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("GLOWGUARD_STORE")); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("GLOWGUARD_STORE_NAMESPACE")); v != "" {
		cfg.Namespace = v
	}
	if v := strings.TrimSpace(os.Getenv("GLOWGUARD_STORE_PATH")); v != "" {
		cfg.FilePath = v
	}
	cfg.Passphrase = os.Getenv(token.PassphraseEnvKey)

	if v := strings.TrimSpace(os.Getenv("GLOWGUARD_REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}
	cfg.RedisPassword = os.Getenv("GLOWGUARD_REDIS_PASSWORD")
	if v := strings.TrimSpace(os.Getenv("GLOWGUARD_REDIS_DB")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, ErrConfig
		}
		cfg.RedisDB = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.FilePath == "" {
			return ErrConfig
		}
	case BackendRedis:
		if c.RedisAddr == "" || c.Namespace == "" {
			return ErrConfig
		}
	case BackendPostgres:
		if c.Namespace == "" {
			return ErrConfig
		}
	default:
		return ErrConfig
	}
	return nil
}
