// Package config loads the application configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
// or "2m", or from bare integers interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level application configuration.
type Config struct {
	App     AppConfig     `yaml:"app"`
	RPC     RPCConfig     `yaml:"rpc"`
	Watch   WatchConfig   `yaml:"watch"`
	Trade   TradeConfig   `yaml:"trade"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type AppConfig struct {
	Name string `yaml:"name"`
}

type RPCConfig struct {
	HTTPEndpoint   string        `yaml:"http_endpoint"`
	WSEndpoint     string        `yaml:"ws_endpoint"`
	Timeout        Duration      `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

type WatchConfig struct {
	ProgramID  string `yaml:"program_id"`
	Commitment string `yaml:"commitment"`
}

type TradeConfig struct {
	FeeReceiver         string        `yaml:"fee_receiver"`
	ComputeUnitLimit    uint32        `yaml:"compute_unit_limit"`
	ComputeUnitPrice    uint64        `yaml:"compute_unit_price"`
	ConfirmTimeout      Duration      `yaml:"confirm_timeout"`
	RebroadcastInterval Duration      `yaml:"rebroadcast_interval"`
	MinOut              uint64        `yaml:"min_out"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "curvebot"},
		RPC: RPCConfig{
			HTTPEndpoint:   "https://api.mainnet-beta.solana.com",
			WSEndpoint:     "wss://api.mainnet-beta.solana.com",
			Timeout:        Duration(30 * time.Second),
			MaxRetries:     3,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Watch: WatchConfig{
			Commitment: "confirmed",
		},
		Trade: TradeConfig{
			ComputeUnitLimit:    120_000,
			ComputeUnitPrice:    100_000,
			ConfirmTimeout:      Duration(60 * time.Second),
			RebroadcastInterval: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads the configuration from path, applying defaults first and
// environment overrides last. An empty path skips the file and returns
// defaults plus environment. A .env file in the working directory is loaded
// best-effort before overrides are read.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_HTTP_ENDPOINT"); v != "" {
		cfg.RPC.HTTPEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("RPC_WS_ENDPOINT"); v != "" {
		cfg.RPC.WSEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Journal.DSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("FEE_RECEIVER"); v != "" {
		cfg.Trade.FeeReceiver = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
}

func validate(cfg *Config) error {
	if cfg.RPC.HTTPEndpoint == "" {
		return fmt.Errorf("rpc.http_endpoint is required")
	}
	if cfg.RPC.WSEndpoint == "" {
		return fmt.Errorf("rpc.ws_endpoint is required")
	}
	if cfg.RPC.Timeout <= 0 {
		return fmt.Errorf("rpc.timeout must be greater than 0")
	}
	if cfg.Trade.RebroadcastInterval <= 0 {
		return fmt.Errorf("trade.rebroadcast_interval must be greater than 0")
	}
	if cfg.Trade.ConfirmTimeout <= 0 {
		return fmt.Errorf("trade.confirm_timeout must be greater than 0")
	}
	if cfg.Journal.Enabled && cfg.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required when the journal is enabled")
	}
	return nil
}
