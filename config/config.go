// Package config loads BlogBook settings.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// file, a .env file, and BLOGBOOK_* environment variables. Command-line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gaurav-prasanna/blogbook/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BLOGBOOK_"

// Config is the top-level BlogBook configuration.
type Config struct {
	Title    string `yaml:"title"`
	Creator  string `yaml:"creator"`
	Language string `yaml:"language"`
	Output   string `yaml:"output"`
	CacheDir string `yaml:"cache_dir"`
	NoCache  bool   `yaml:"no_cache"`
	// MaxPages caps pages fetched per crawl. Zero means unlimited.
	MaxPages int `yaml:"max_pages"`
	// Workers bounds concurrent image fetches per chapter.
	Workers int         `yaml:"workers"`
	Fetch   FetchConfig `yaml:"fetch"`
}

// FetchConfig controls HTTP behaviour.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	// RateLimit is requests per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Title:    "Title",
		Creator:  "Creator",
		Language: "en",
		Output:   "output.epub",
		CacheDir: ".cache",
		Workers:  4,
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			Burst:   1,
		},
	}
}

// Load builds the configuration from path (optional), ./.env and the
// process environment.
func Load(path string) (*Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, dotenv string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config %s: %w", core.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config %s: %w", core.ErrConfiguration, path, err)
		}
	}

	fileVars, err := godotenv.Read(dotenv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrConfiguration, dotenv, err)
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := fileVars[EnvPrefix+key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"TITLE":      &c.Title,
		"CREATOR":    &c.Creator,
		"LANGUAGE":   &c.Language,
		"OUTPUT":     &c.Output,
		"CACHE_DIR":  &c.CacheDir,
		"USER_AGENT": &c.Fetch.UserAgent,
	}
	for key, dst := range strs {
		if v, ok := env(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_PAGES": &c.MaxPages,
		"WORKERS":   &c.Workers,
		"BURST":     &c.Fetch.Burst,
	}
	for key, dst := range ints {
		if v, ok := env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(key, err)
			}
			*dst = n
		}
	}

	if v, ok := env("NO_CACHE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("NO_CACHE", err)
		}
		c.NoCache = b
	}
	if v, ok := env("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("RATE_LIMIT", err)
		}
		c.Fetch.RateLimit = f
	}
	if v, ok := env("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("TIMEOUT", err)
		}
		c.Fetch.Timeout = d
	}
	return nil
}

func envError(key string, err error) error {
	return fmt.Errorf("%w: %s%s: %w", core.ErrConfiguration, EnvPrefix, key, err)
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	switch {
	case c.Language == "":
		return fmt.Errorf("%w: language is required", core.ErrConfiguration)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", core.ErrConfiguration)
	case c.MaxPages < 0:
		return fmt.Errorf("%w: max_pages must be >= 0", core.ErrConfiguration)
	case c.Fetch.RateLimit < 0:
		return fmt.Errorf("%w: fetch.rate_limit must be >= 0", core.ErrConfiguration)
	case c.Fetch.Timeout <= 0:
		return fmt.Errorf("%w: fetch.timeout must be > 0", core.ErrConfiguration)
	}
	return nil
}
