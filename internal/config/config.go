package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Razorpay   RazorpayConfig   `yaml:"razorpay" mapstructure:"razorpay"`
	Settlement SettlementConfig `yaml:"settlement" mapstructure:"settlement"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds vision model API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LedgerConfig holds POD registry gateway settings. An empty RPCURL or
// Contract selects the local synthetic recorder.
type LedgerConfig struct {
	RPCURL             string `yaml:"rpc_url" mapstructure:"rpc_url"`
	Network            string `yaml:"network" mapstructure:"network"`
	Contract           string `yaml:"contract" mapstructure:"contract"`
	ConfirmTimeoutSecs int    `yaml:"confirm_timeout_secs" mapstructure:"confirm_timeout_secs"`
	PollIntervalMs     int    `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// RazorpayConfig holds payment rail credentials. Empty keys select the local
// synthetic initiator.
type RazorpayConfig struct {
	KeyID         string `yaml:"key_id" mapstructure:"key_id"`
	KeySecret     string `yaml:"key_secret" mapstructure:"key_secret"`
	AccountNumber string `yaml:"account_number" mapstructure:"account_number"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

// SettlementConfig configures the orchestrator.
type SettlementConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// BatchConfig configures batch claim processing.
type BatchConfig struct {
	MaxConcurrentClaims int `yaml:"max_concurrent_claims" mapstructure:"max_concurrent_claims"`
	ClaimsPerMinute     int `yaml:"claims_per_minute" mapstructure:"claims_per_minute"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MYNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "settlements.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("ledger.network", "polygon-mumbai")
	v.SetDefault("ledger.confirm_timeout_secs", 60)
	v.SetDefault("ledger.poll_interval_ms", 2000)
	v.SetDefault("razorpay.base_url", "https://api.razorpay.com/v1")
	v.SetDefault("settlement.confidence_threshold", 0.6)
	v.SetDefault("batch.max_concurrent_claims", 5)
	v.SetDefault("batch.claims_per_minute", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a given mode needs. Ledger and Razorpay
// credentials are never required: missing ones select the local synthetic
// backends instead.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "settle", "batch", "serve":
	default:
		return eris.Errorf("config: unknown mode: %s", mode)
	}

	var problems []string
	if c.Anthropic.Key == "" {
		problems = append(problems, "anthropic.key is required")
	}
	if c.Settlement.ConfidenceThreshold < 0 || c.Settlement.ConfidenceThreshold > 1 {
		problems = append(problems, "settlement.confidence_threshold must be between 0 and 1")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if mode == "batch" {
		if c.Batch.MaxConcurrentClaims < 1 || c.Batch.MaxConcurrentClaims > 50 {
			problems = append(problems, "batch.max_concurrent_claims must be between 1 and 50")
		}
		if c.Batch.ClaimsPerMinute < 1 {
			problems = append(problems, "batch.claims_per_minute must be >= 1")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
