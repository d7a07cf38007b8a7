package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ChatSync/internal/history"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultStateDB = "chatsync.db"
	DefaultLogDir  = "logs"
)

// Config holds application configuration
type Config struct {
	BaseURL          string        // Backend root, e.g. "https://chat.example.com"
	StateDB          string        // sqlite file for persistent keys (token, user id, role)
	LogDir           string        // Directory for rotating log, trace and metric files
	AutoSaveInterval time.Duration // Auto-save period
	RequestTimeout   time.Duration // Per-request timeout, 0 for none
	SessionID        string        // Open this session on start
	Debug            bool
}

// Load reads .env (if present) and the environment, then parses args as
// flags whose defaults come from the environment.
func Load(args []string) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Config{
		BaseURL:          envString("CHATSYNC_BASE_URL", DefaultBaseURL),
		StateDB:          envString("CHATSYNC_STATE_DB", DefaultStateDB),
		LogDir:           envString("CHATSYNC_LOG_DIR", DefaultLogDir),
		AutoSaveInterval: history.DefaultAutoSaveInterval,
	}

	var err error
	if cfg.AutoSaveInterval, err = envDuration("CHATSYNC_AUTOSAVE_INTERVAL", history.DefaultAutoSaveInterval); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = envDuration("CHATSYNC_REQUEST_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	if cfg.Debug, err = envBool("CHATSYNC_DEBUG", false); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("chatsync", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Chat backend base URL")
	fs.StringVar(&cfg.StateDB, "state", cfg.StateDB, "Path of the local state database")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for log files")
	fs.DurationVar(&cfg.AutoSaveInterval, "autosave", cfg.AutoSaveInterval, "Auto-save interval")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout (0 = none)")
	fs.StringVar(&cfg.SessionID, "session-id", "", "Open an existing session by ID")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base URL %q must be an absolute http(s) URL", c.BaseURL))
	}
	if c.StateDB == "" {
		errs = append(errs, errors.New("state database path is required"))
	} else if dir := filepath.Dir(c.StateDB); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			errs = append(errs, fmt.Errorf("state database directory: %w", err))
		}
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log directory is required"))
	}
	if c.AutoSaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("auto-save interval must be positive, got %s", c.AutoSaveInterval))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout))
	}

	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
