package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the API base URL baked in at build time with
// -ldflags "-X github.com/salesdesk-dev/salesdesk/internal/config.DefaultBaseURL=..."
var DefaultBaseURL = ""

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig

	// Token storage Configuration
	Tokens TokenConfig

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds backend API configuration
type APIConfig struct {
	BaseURL string        // Overrides the server selected from salesdesk.json when set
	Timeout time.Duration // Zero means the transport default
}

// TokenConfig holds token storage configuration
type TokenConfig struct {
	Backend string // keyring, file, memory
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	baseURL := os.Getenv("SALESDESK_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var timeout time.Duration
	if raw := os.Getenv("SALESDESK_HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SALESDESK_HTTP_TIMEOUT %q: %w", raw, err)
		}
		timeout = d
	}

	backend := strings.ToLower(os.Getenv("SALESDESK_TOKEN_BACKEND"))
	switch backend {
	case "":
		backend = "keyring"
	case "keyring", "file", "memory":
	default:
		return nil, fmt.Errorf("invalid SALESDESK_TOKEN_BACKEND %q, must be one of: keyring, file, memory", backend)
	}

	// The CLI logs diagnostics only, so keep the console quiet by default
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "console"
	}

	return &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(baseURL, "/"),
			Timeout: timeout,
		},
		Tokens: TokenConfig{
			Backend: backend,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
	}, nil
}
