package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// DataDir holds epilogue.db, the deep-link inbox and an optional .env.
	DataDir string

	// Remote services
	CatalogBaseURL string
	SearchBaseURL  string
	HTTPTimeout    time.Duration

	// UI timing
	SearchSettleDelay time.Duration
	SignOutGrace      time.Duration

	// RefreshSchedule is a cron spec for the background shelf refresh. Empty disables it.
	RefreshSchedule string

	LogLevel       string
	LogDevelopment bool

	// UseKeychain stores the auth token in the macOS Keychain instead of the database.
	UseKeychain bool
}

const (
	DefaultCatalogBaseURL = "https://micro.blog"
	DefaultSearchBaseURL  = "https://www.googleapis.com/books/v1"
)

// DBPath is the preferences database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "epilogue.db")
}

// InboxDir is where pending deep links are dropped.
func (c *Config) InboxDir() string {
	return filepath.Join(c.DataDir, "inbox")
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// Missing .env files are fine; the environment wins either way.
	_ = godotenv.Load()

	dataDir := os.Getenv("EPILOGUE_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "epilogue")
	}
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))

	cfg := &Config{
		DataDir:         dataDir,
		CatalogBaseURL:  strings.TrimRight(getEnv("EPILOGUE_CATALOG_URL", DefaultCatalogBaseURL), "/"),
		SearchBaseURL:   strings.TrimRight(getEnv("EPILOGUE_SEARCH_URL", DefaultSearchBaseURL), "/"),
		RefreshSchedule: "@every 15m",
		LogLevel:        getEnv("EPILOGUE_LOG_LEVEL", "info"),
		LogDevelopment:  os.Getenv("EPILOGUE_LOG_DEV") == "true",
		UseKeychain:     os.Getenv("EPILOGUE_USE_KEYCHAIN") == "true",
	}
	// An explicitly empty schedule disables the refresh.
	if v, ok := os.LookupEnv("EPILOGUE_REFRESH_SCHEDULE"); ok {
		cfg.RefreshSchedule = strings.TrimSpace(v)
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("EPILOGUE_HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SearchSettleDelay, err = getDuration("EPILOGUE_SEARCH_SETTLE", time.Second); err != nil {
		return nil, err
	}
	if cfg.SignOutGrace, err = getDuration("EPILOGUE_SIGNOUT_GRACE", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration accepts Go durations ("1500ms") or plain milliseconds ("1500").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid %s: must not be negative", key)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
