package app

import (
	"fmt"
	"time"

	"glowguard/cmd/internal/apiclient"
	"glowguard/cmd/internal/session"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	APIBaseURL string
	LogLevel   string
	LogFormat  string

	HTTPTimeout time.Duration
	Retries     int

	// Postgres pool for the postgres session backend.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, the file backend refuses to write plaintext credentials.
	RequireSealing bool

	Store session.Config
}

// LoadConfig loads Config from environment variables with defaults.
// Call LoadDotEnv first to pick up a .env file.
func LoadConfig() (Config, error) {
	store, err := session.LoadConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("session store: %w", err)
	}

	return Config{
		// VITE_API_URL is honoured so a front-end .env can be reused as is.
		APIBaseURL: EnvString("GLOWGUARD_API_URL", apiclient.DefaultBaseURL, "VITE_API_URL"),
		LogLevel:   EnvString("GLOWGUARD_LOG_LEVEL", "warn"),
		LogFormat:  EnvString("GLOWGUARD_LOG_FORMAT", "json"),

		HTTPTimeout: EnvDuration("GLOWGUARD_HTTP_TIMEOUT", 30*time.Second),
		Retries:     EnvInt("GLOWGUARD_RETRIES", 1),

		DatabaseURL: EnvString("GLOWGUARD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("GLOWGUARD_DB_MAX_CONNS", 4),
		DBMinConns:  EnvInt32("GLOWGUARD_DB_MIN_CONNS", 0),

		RequireSealing: EnvBool("GLOWGUARD_REQUIRE_SEALING", false),

		Store: store,
	}, nil
}
