package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Accounts  []string  `yaml:"accounts"`
	Poll      Poll      `yaml:"poll"`
	Batch     Batch     `yaml:"batch"`
	Scraper   Scraper   `yaml:"scraper"`
	Analysis  Analysis  `yaml:"analysis"`
	Summary   Summary   `yaml:"summary"`
	Alerts    Alerts    `yaml:"alerts"`
	Server    Server    `yaml:"server"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Poll struct {
	IntervalSeconds    int `yaml:"interval_seconds"`
	SourceDelaySeconds int `yaml:"source_delay_seconds"`
	BackoffSeconds     int `yaml:"backoff_seconds"`
	RetentionHours     int `yaml:"retention_hours"`
	FetchLimit         int `yaml:"fetch_limit"`
}

type Batch struct {
	FirstWaitSeconds float64 `yaml:"first_wait_seconds"`
	FillWaitSeconds  float64 `yaml:"fill_wait_seconds"`
	MaxBatch         int     `yaml:"max_batch"`
}

type Scraper struct {
	MirrorURL      string `yaml:"mirror_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Analysis struct {
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Temperature float64  `yaml:"temperature"`
	Subject     string   `yaml:"subject"`
	Topics      []string `yaml:"topics"`
	MinUrgency  int      `yaml:"min_urgency"`
}

type Summary struct {
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	ExpandLinks bool    `yaml:"expand_links"`
}

type Alerts struct {
	AccountSIDEnv string   `yaml:"account_sid_env"`
	AuthTokenEnv  string   `yaml:"auth_token_env"`
	WhatsAppFrom  string   `yaml:"whatsapp_from"`
	Recipients    []string `yaml:"recipients"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for tweetwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tweetwatch")
}

// DataDir returns the XDG data directory for tweetwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tweetwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tweetwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'tweetwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. A .env file next to the
// working directory is loaded first so env-named secrets resolve.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Poll: Poll{
			IntervalSeconds:    300,
			SourceDelaySeconds: 2,
			BackoffSeconds:     30,
			RetentionHours:     24,
			FetchLimit:         20,
		},
		Batch: Batch{
			FirstWaitSeconds: 1.0,
			FillWaitSeconds:  2.0,
			MaxBatch:         10,
		},
		Scraper: Scraper{
			MirrorURL:      "https://nitter.net",
			TimeoutSeconds: 15,
		},
		Analysis: Analysis{
			Model:       "llama-3.1-8b-instant",
			BaseURL:     "https://api.groq.com/openai/v1",
			APIKeyEnv:   "GROQ_API_KEY",
			Temperature: 0.1,
			Subject:     "the monitored office",
			Topics:      []string{"Education", "Home", "Power", "Urban Development", "General"},
			MinUrgency:  1,
		},
		Summary: Summary{
			Enabled:     true,
			Model:       "llama-3.1-8b-instant",
			Temperature: 0.2,
			ExpandLinks: false,
		},
		Alerts: Alerts{
			AccountSIDEnv: "TWILIO_ACCOUNT_SID",
			AuthTokenEnv:  "TWILIO_AUTH_TOKEN",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// PollInterval returns the poll cycle period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// SourceDelay returns the inter-source pacing delay.
func (c *Config) SourceDelay() time.Duration {
	return time.Duration(c.Poll.SourceDelaySeconds) * time.Second
}

// Backoff returns the wait after an unexpected cycle failure.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Poll.BackoffSeconds) * time.Second
}

// Retention returns the post retention age.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Poll.RetentionHours) * time.Hour
}

// FirstWait returns the batch first-task wait.
func (c *Config) FirstWait() time.Duration {
	return time.Duration(c.Batch.FirstWaitSeconds * float64(time.Second))
}

// FillWait returns the per-task batch fill wait.
func (c *Config) FillWait() time.Duration {
	return time.Duration(c.Batch.FillWaitSeconds * float64(time.Second))
}

// ScraperTimeout returns the mirror HTTP timeout.
func (c *Config) ScraperTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
