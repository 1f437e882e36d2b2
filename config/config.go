// Package config loads the service configuration: a YAML file for structure
// and the environment (optionally a .env file) for secrets. The loaded
// Config is constructed once at startup and passed explicitly to whatever
// needs it; there is no global configuration state.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Oanda   OandaConfig   `yaml:"oanda"`
	Journal JournalConfig `yaml:"journal"`
	Alert   AlertConfig   `yaml:"alert"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the webhook listener and its access control.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	Tokens          []string `yaml:"tokens"`
	AllowedIPs      []string `yaml:"allowed_ips"`
	AllowedNetworks []string `yaml:"allowed_networks"` // CIDR form
}

// Credentials are the per-mode OANDA API key and account id. They normally
// come from the environment rather than the YAML file.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	AccountID string `yaml:"account_id"`
}

type OandaConfig struct {
	DryRun       bool          `yaml:"dry_run"`
	Timeout      time.Duration `yaml:"timeout"`
	PrecisionDir string        `yaml:"precision_dir"`
	Practice     Credentials   `yaml:"practice"`
	Live         Credentials   `yaml:"live"`
}

type JournalConfig struct {
	Type       string `yaml:"type"` // "sqlite" or "csv"
	DBPath     string `yaml:"db_path,omitempty"`
	TradesFile string `yaml:"trades_file,omitempty"`
}

type AlertConfig struct {
	DiscordWebhookURL string        `yaml:"discord_webhook_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// envOverlay maps secret environment variables onto the config. Values set
// in the environment win over the YAML file.
type envOverlay struct {
	PracticeAPIKey    string `envconfig:"OANDA_PRACTICE_API_KEY"`
	PracticeAccountID string `envconfig:"OANDA_PRACTICE_ACCOUNT_ID"`
	LiveAPIKey        string `envconfig:"OANDA_LIVE_API_KEY"`
	LiveAccountID     string `envconfig:"OANDA_LIVE_ACCOUNT_ID"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
}

// Load reads the YAML file at path, applies the environment overlay, and
// validates the result. A .env file in the working directory is honored when
// present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var env envOverlay
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envOverlay) {
	if env.PracticeAPIKey != "" {
		c.Oanda.Practice.APIKey = env.PracticeAPIKey
	}
	if env.PracticeAccountID != "" {
		c.Oanda.Practice.AccountID = env.PracticeAccountID
	}
	if env.LiveAPIKey != "" {
		c.Oanda.Live.APIKey = env.LiveAPIKey
	}
	if env.LiveAccountID != "" {
		c.Oanda.Live.AccountID = env.LiveAccountID
	}
	if env.DiscordWebhookURL != "" {
		c.Alert.DiscordWebhookURL = env.DiscordWebhookURL
	}
}

// Validate checks the configuration is usable. Credentials are only
// validated per mode at request time, so a practice-only deployment needs no
// live keys.
func (c *Config) Validate() error {
	if len(c.Server.Tokens) == 0 {
		return fmt.Errorf("server.tokens must list at least one access token")
	}
	for _, ip := range c.Server.AllowedIPs {
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("server.allowed_ips: %q is not an IP address", ip)
		}
	}
	for _, cidr := range c.Server.AllowedNetworks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("server.allowed_networks: %q is not a CIDR network: %w", cidr, err)
		}
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "csv":
		if c.Journal.TradesFile == "" {
			return fmt.Errorf("journal.trades_file required for csv journal")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite' or 'csv'")
	}

	if c.Oanda.Timeout < 0 {
		return fmt.Errorf("oanda.timeout must not be negative")
	}
	return nil
}

// Default returns the configuration defaults applied before the YAML file
// is read.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Oanda: OandaConfig{
			Timeout:      10 * time.Second,
			PrecisionDir: ".",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./trades.db",
		},
		Alert: AlertConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
