// Package config loads client settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration.
type Config struct {
	ServerURL    string
	DataDir      string
	PollInterval time.Duration
	JobTimeout   time.Duration
	HTTPTimeout  time.Duration
	RateLimit    float64
	LogLevel     string
}

// DBPath is the preference database inside DataDir.
func (c Config) DBPath() string { return filepath.Join(c.DataDir, "techintel.db") }

// LogPath is where the interactive dashboard writes its log.
func (c Config) LogPath() string { return filepath.Join(c.DataDir, "techintel.log") }

// Lookup resolves one variable.
type Lookup func(key string) (string, bool)

// Load reads the process environment, falling back to values from the given
// .env files (default: ./.env). Process variables always win; missing files
// are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	fileVars := map[string]string{}
	for _, f := range envFiles {
		vars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vars {
			if _, seen := fileVars[k]; !seen {
				fileVars[k] = v
			}
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	})
}

// FromLookup builds a validated Config from lookup.
func FromLookup(lookup Lookup) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	dataDir := get("TECHINTEL_DATA", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".techintel")
	}

	var errs []error
	cfg := Config{
		ServerURL:    strings.TrimRight(get("TECHINTEL_SERVER", "http://127.0.0.1:8000"), "/"),
		DataDir:      dataDir,
		PollInterval: parseDuration(get("TECHINTEL_POLL_INTERVAL", "2.5s"), "TECHINTEL_POLL_INTERVAL", &errs),
		JobTimeout:   parseDuration(get("TECHINTEL_JOB_TIMEOUT", "15m"), "TECHINTEL_JOB_TIMEOUT", &errs),
		HTTPTimeout:  parseDuration(get("TECHINTEL_HTTP_TIMEOUT", "15s"), "TECHINTEL_HTTP_TIMEOUT", &errs),
		RateLimit:    parseFloat(get("TECHINTEL_RATE", "10"), "TECHINTEL_RATE", &errs),
		LogLevel:     strings.ToLower(get("TECHINTEL_LOG_LEVEL", "info")),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// parseDuration accepts Go durations ("2.5s") and bare seconds ("30").
func parseDuration(v, key string, errs *[]error) time.Duration {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
	}
	return d
}

func parseFloat(v, key string, errs *[]error) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, v))
	}
	return f
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("TECHINTEL_SERVER: want an http(s) URL, got %q", c.ServerURL))
	}
	if c.PollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("TECHINTEL_POLL_INTERVAL: %s is below 100ms", c.PollInterval))
	}
	if c.JobTimeout < c.PollInterval {
		errs = append(errs, fmt.Errorf("TECHINTEL_JOB_TIMEOUT: %s is shorter than the poll interval", c.JobTimeout))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TECHINTEL_HTTP_TIMEOUT: must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("TECHINTEL_RATE: must not be negative"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("TECHINTEL_LOG_LEVEL: unknown level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
