package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Plot    PlotConfig    `yaml:"plot"`
	Charts  []ChartConfig `yaml:"charts"`
}

// ServerConfig represents the server configuration
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// PlotConfig controls fetching and drawing
type PlotConfig struct {
	Width          int      `yaml:"width"`
	Height         int      `yaml:"height"`
	Format         string   `yaml:"format"`
	FetchTimeout   string   `yaml:"fetch_timeout"`
	AllowedHosts   []string `yaml:"allowed_hosts"`
	AdhocPerMinute int      `yaml:"adhoc_per_minute"`
}

// ChartConfig names a series source served by the chart endpoints
type ChartConfig struct {
	Name   string `yaml:"name"`
	Title  string `yaml:"title"`
	Source string `yaml:"source"`
}

// Load loads the configuration from defaults and environment variables,
// reading POWERPLOT_CONFIG as a YAML file when it is set
func Load() (*Config, error) {
	return loadWithDefaults(getEnv("POWERPLOT_CONFIG", ""))
}

// LoadFromFile loads configuration from a YAML file, with environment variable overrides
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:8080",
			ShutdownTimeout: "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Plot: PlotConfig{
			Width:          800,
			Height:         320,
			Format:         "png",
			FetchTimeout:   "0s",
			AdhocPerMinute: 30,
		},
	}
}

// loadWithDefaults layers the YAML file (if any) over the defaults, then
// applies environment overrides
func loadWithDefaults(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath != "" {
		if err := loadYAMLFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadYAMLFile decodes a YAML file onto cfg; keys missing from the file keep their current values
func loadYAMLFile(configPath string, cfg *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

// applyEnv overrides cfg with any environment variables that are set
func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("POWERPLOT_SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.ShutdownTimeout = getEnv("POWERPLOT_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("POWERPLOT_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = getEnv("POWERPLOT_LOG_FILE", cfg.Logging.File)

	cfg.Plot.Width = getEnvInt("POWERPLOT_WIDTH", cfg.Plot.Width)
	cfg.Plot.Height = getEnvInt("POWERPLOT_HEIGHT", cfg.Plot.Height)
	cfg.Plot.Format = getEnv("POWERPLOT_FORMAT", cfg.Plot.Format)
	cfg.Plot.FetchTimeout = getEnv("POWERPLOT_FETCH_TIMEOUT", cfg.Plot.FetchTimeout)
	cfg.Plot.AllowedHosts = getEnvStringSlice("POWERPLOT_ALLOWED_HOSTS", cfg.Plot.AllowedHosts)
	cfg.Plot.AdhocPerMinute = getEnvInt("POWERPLOT_ADHOC_PER_MINUTE", cfg.Plot.AdhocPerMinute)

	// Override port if PORT env var is set
	if port := getEnv("PORT", ""); port != "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if _, err := c.Server.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}
	if c.Plot.Format != "png" && c.Plot.Format != "svg" {
		return fmt.Errorf("plot format must be 'png' or 'svg'")
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return fmt.Errorf("plot width and height must be positive")
	}
	if _, err := c.Plot.Timeout(); err != nil {
		return err
	}
	if c.Plot.AdhocPerMinute < 0 {
		return fmt.Errorf("adhoc_per_minute cannot be negative")
	}

	seen := make(map[string]bool, len(c.Charts))
	for i, chart := range c.Charts {
		if chart.Name == "" {
			return fmt.Errorf("chart %d: name is required", i)
		}
		if seen[chart.Name] {
			return fmt.Errorf("chart %q: duplicate name", chart.Name)
		}
		seen[chart.Name] = true
		u, err := url.Parse(chart.Source)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("chart %q: source must be an absolute http(s) URL", chart.Name)
		}
	}

	return nil
}

// ShutdownTimeoutDuration parses the graceful shutdown timeout
func (s ServerConfig) ShutdownTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown_timeout %q: %w", s.ShutdownTimeout, err)
	}
	return d, nil
}

// Timeout parses the per-fetch timeout. Zero means no timeout.
func (p PlotConfig) Timeout() (time.Duration, error) {
	if p.FetchTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.FetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid fetch_timeout %q: %w", p.FetchTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("fetch_timeout cannot be negative")
	}
	return d, nil
}

// Chart returns the chart with the given name
func (c *Config) Chart(name string) (ChartConfig, bool) {
	for _, chart := range c.Charts {
		if chart.Name == name {
			return chart, true
		}
	}
	return ChartConfig{}, false
}
