package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "HARNESS"

// FileEnv names the config file when no path is given explicitly.
const FileEnv = EnvPrefix + "_CONFIG_FILE"

// View kinds.
const (
	ViewRod    = "rod"
	ViewMemory = "memory"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Config holds host configuration. It never crosses into the renderer.
type Config struct {
	Log       LogConfig       `envconfig:"LOG" yaml:"log" toml:"log"`
	Browser   BrowserConfig   `envconfig:"BROWSER" yaml:"browser" toml:"browser"`
	Renderer  RendererConfig  `envconfig:"RENDERER" yaml:"renderer" toml:"renderer"`
	Server    ServerConfig    `envconfig:"SERVER" yaml:"server" toml:"server"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT" yaml:"rate_limit" toml:"rate_limit"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"DEV" yaml:"development" toml:"development"`
}

// BrowserConfig selects and sizes the view.
type BrowserConfig struct {
	Kind       string   `envconfig:"KIND" yaml:"kind" toml:"kind"`
	Headless   bool     `envconfig:"HEADLESS" yaml:"headless" toml:"headless"`
	Bin        string   `envconfig:"BIN" yaml:"bin" toml:"bin"`
	ControlURL string   `envconfig:"CONTROL_URL" yaml:"control_url" toml:"control_url"`
	Width      int      `envconfig:"WIDTH" yaml:"width" toml:"width"`
	Height     int      `envconfig:"HEIGHT" yaml:"height" toml:"height"`
	NavTimeout Duration `envconfig:"NAV_TIMEOUT" yaml:"nav_timeout" toml:"nav_timeout"`
}

// RendererConfig holds the isolated context settings.
type RendererConfig struct {
	PreloadPath   string   `envconfig:"PRELOAD_PATH" yaml:"preload_path" toml:"preload_path"`
	ScriptPath    string   `envconfig:"SCRIPT_PATH" yaml:"script_path" toml:"script_path"`
	MarkupPath    string   `envconfig:"MARKUP_PATH" yaml:"markup_path" toml:"markup_path"`
	ScriptTimeout Duration `envconfig:"SCRIPT_TIMEOUT" yaml:"script_timeout" toml:"script_timeout"`
	WaitForURL    bool     `envconfig:"WAIT_FOR_URL" yaml:"wait_for_url" toml:"wait_for_url"`
	WaitRetries   int      `envconfig:"WAIT_RETRIES" yaml:"wait_retries" toml:"wait_retries"`
}

// ServerConfig holds the HTTP surface configuration.
type ServerConfig struct {
	Enabled      bool     `envconfig:"ENABLED" yaml:"enabled" toml:"enabled"`
	Addr         string   `envconfig:"ADDR" yaml:"addr" toml:"addr"`
	FixturesDir  string   `envconfig:"FIXTURES_DIR" yaml:"fixtures_dir" toml:"fixtures_dir"`
	FixturesAddr string   `envconfig:"FIXTURES_ADDR" yaml:"fixtures_addr" toml:"fixtures_addr"`
	FixturesGlob []string `envconfig:"FIXTURES_GLOB" yaml:"fixtures_glob" toml:"fixtures_glob"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration read from "5s"-style strings in env, YAML
// and TOML alike.
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Development: false,
		},
		Browser: BrowserConfig{
			Kind:       ViewRod,
			Width:      800,
			Height:     800,
			NavTimeout: Duration(30 * time.Second),
		},
		Renderer: RendererConfig{
			PreloadPath:   "web/preload.js",
			ScriptTimeout: Duration(5 * time.Second),
			WaitRetries:   3,
		},
		Server: ServerConfig{
			Enabled:      false,
			Addr:         "127.0.0.1:8000",
			FixturesDir:  "web/fixtures",
			FixturesAddr: "127.0.0.1:3000",
			FixturesGlob: []string{"**"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Load builds the configuration: defaults, then the config file (path, or
// HARNESS_CONFIG_FILE when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load("")
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration the harness cannot run with.
func (c *Config) Validate() error {
	switch c.Browser.Kind {
	case ViewRod, ViewMemory:
	default:
		return fmt.Errorf("invalid browser kind %q (want %s or %s)", c.Browser.Kind, ViewRod, ViewMemory)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Browser.Width, c.Browser.Height)
	}
	if c.Renderer.ScriptTimeout <= 0 {
		return errors.New("renderer script timeout must be positive")
	}
	if c.Renderer.WaitRetries < 0 {
		return errors.New("wait retries must not be negative")
	}
	return nil
}
