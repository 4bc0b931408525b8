package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Consolidate ConsolidateConfig `yaml:"consolidate" mapstructure:"consolidate"`
	Validation  ValidationConfig  `yaml:"validation" mapstructure:"validation"`
	Registry    RegistryConfig    `yaml:"registry" mapstructure:"registry"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ConsolidateConfig holds the merge-policy thresholds.
//
// Both thresholds are on the 0-100 field-confidence scale: contributions
// below DropThreshold are discarded without being recorded, contributions
// at or above AutoApplyThreshold overwrite the canonical field.
type ConsolidateConfig struct {
	DropThreshold      float64 `yaml:"drop_threshold" mapstructure:"drop_threshold"`
	AutoApplyThreshold float64 `yaml:"auto_apply_threshold" mapstructure:"auto_apply_threshold"`
}

// ValidationConfig configures the validation orchestrator.
type ValidationConfig struct {
	ValidatorTimeoutSecs   int     `yaml:"validator_timeout_secs" mapstructure:"validator_timeout_secs"`
	DefaultAuthorityWeight float64 `yaml:"default_authority_weight" mapstructure:"default_authority_weight"`
	ValidatedThreshold     float64 `yaml:"validated_threshold" mapstructure:"validated_threshold"`
}

// ValidatorTimeout returns the per-validator deadline as a Duration.
func (v ValidationConfig) ValidatorTimeout() time.Duration {
	return time.Duration(v.ValidatorTimeoutSecs) * time.Second
}

// RegistryConfig holds company-registry API settings.
type RegistryConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Key            string  `yaml:"key" mapstructure:"key"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
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
	v.SetEnvPrefix("PROFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("consolidate.drop_threshold", 50.0)
	v.SetDefault("consolidate.auto_apply_threshold", 80.0)
	v.SetDefault("validation.validator_timeout_secs", 10)
	v.SetDefault("validation.default_authority_weight", 0.5)
	v.SetDefault("validation.validated_threshold", 70.0)
	v.SetDefault("registry.base_url", "https://api.opencorporates.com/v0.4")
	v.SetDefault("registry.requests_per_sec", 2.0)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")

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
