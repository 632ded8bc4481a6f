package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Storage. Empty URLs fall back to in-process stores.
	MongoDBURL  string
	MongoDBName string
	DatabaseURL string
	RedisURL    string

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionTTL    time.Duration
	EncryptionKey string

	// HTTP
	FrontendURL    string
	AllowedOrigins []string

	SentryDSN string

	// Classifier
	ClassifierRulesPath string

	// Sync
	SyncDefaultMaxResults      int
	SyncFetchDefaultMaxResults int
	SyncMaxResultsLimit        int
	SyncFetchConcurrency       int
	SyncFetchTimeout           time.Duration
	SyncLockTTL                time.Duration
	SyncRatePerMinute          int

	SnippetPreviewLimit int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		// Storage
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "job_tracker"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),

		// Session
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    time.Duration(getEnvInt("SESSION_TTL_HOUR", 24*7)) * time.Hour,
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		// HTTP
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),

		SentryDSN: getEnv("SENTRY_DSN", ""),

		ClassifierRulesPath: getEnv("CLASSIFIER_RULES_PATH", ""),

		// Sync
		SyncDefaultMaxResults:      getEnvInt("SYNC_DEFAULT_MAX_RESULTS", 50),
		SyncFetchDefaultMaxResults: getEnvInt("SYNC_FETCH_DEFAULT_MAX_RESULTS", 30),
		SyncMaxResultsLimit:        getEnvInt("SYNC_MAX_RESULTS_LIMIT", 100),
		SyncFetchConcurrency:       getEnvInt("SYNC_FETCH_CONCURRENCY", 10),
		SyncFetchTimeout:           time.Duration(getEnvInt("SYNC_FETCH_TIMEOUT_SEC", 15)) * time.Second,
		SyncLockTTL:                time.Duration(getEnvInt("SYNC_LOCK_TTL_SEC", 300)) * time.Second,
		SyncRatePerMinute:          getEnvInt("SYNC_RATE_PER_MIN", 6),

		SnippetPreviewLimit: getEnvInt("SNIPPET_PREVIEW_LIMIT", 400),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if len(c.SessionSecret) < 32 {
			errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters in production"))
		}
		if c.EncryptionKey == "" {
			errs = append(errs, errors.New("ENCRYPTION_KEY is required in production"))
		}
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production"))
		}
	}
	if c.SyncMaxResultsLimit < 1 {
		errs = append(errs, errors.New("SYNC_MAX_RESULTS_LIMIT must be positive"))
	}
	if c.SyncDefaultMaxResults < 1 || c.SyncDefaultMaxResults > c.SyncMaxResultsLimit {
		errs = append(errs, errors.New("SYNC_DEFAULT_MAX_RESULTS must be between 1 and SYNC_MAX_RESULTS_LIMIT"))
	}
	if c.SyncFetchDefaultMaxResults < 1 || c.SyncFetchDefaultMaxResults > c.SyncMaxResultsLimit {
		errs = append(errs, errors.New("SYNC_FETCH_DEFAULT_MAX_RESULTS must be between 1 and SYNC_MAX_RESULTS_LIMIT"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// GoogleConfigured reports whether Google sign-in can be offered.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
