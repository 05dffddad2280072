package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Bot       BotConfig       `mapstructure:"bot"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Environment string `mapstructure:"environment"`
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type WebhookConfig struct {
	Secret       string        `mapstructure:"secret"`
	ReplayWindow time.Duration `mapstructure:"replay_window"`
}

// BotConfig carries the scoring thresholds and expiry durations of the
// abuse-mitigation path. Defaults are product tuning values, kept
// configurable per deployment.
type BotConfig struct {
	BlockThreshold      int           `mapstructure:"block_threshold"`
	ChallengeThreshold  int           `mapstructure:"challenge_threshold"`
	StrictThreshold     int           `mapstructure:"strict_threshold"`
	BlockDuration       time.Duration `mapstructure:"block_duration"`
	ChallengeTTL        time.Duration `mapstructure:"challenge_ttl"`
	HistoryWindow       time.Duration `mapstructure:"history_window"`
	HistoryLimit        int           `mapstructure:"history_limit"`
	HighRatePerMinute   int           `mapstructure:"high_rate_per_minute"`
	MediumRatePerMinute int           `mapstructure:"medium_rate_per_minute"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8080
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Server.Environment == "" {
		globalConfig.Server.Environment = "development"
	}
	if globalConfig.Webhook.ReplayWindow == 0 {
		globalConfig.Webhook.ReplayWindow = 5 * time.Minute
	}
	applyBotDefaults(&globalConfig.Bot)
	if globalConfig.RateLimit.MaxRequests == 0 {
		globalConfig.RateLimit.MaxRequests = 60
	}
	if globalConfig.RateLimit.Window == 0 {
		globalConfig.RateLimit.Window = time.Minute
	}
}

func applyBotDefaults(cfg *BotConfig) {
	if cfg.BlockThreshold == 0 {
		cfg.BlockThreshold = 80
	}
	if cfg.ChallengeThreshold == 0 {
		cfg.ChallengeThreshold = 50
	}
	if cfg.StrictThreshold == 0 {
		cfg.StrictThreshold = 30
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = time.Hour
	}
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = time.Hour
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 100
	}
	if cfg.HighRatePerMinute == 0 {
		cfg.HighRatePerMinute = 60
	}
	if cfg.MediumRatePerMinute == 0 {
		cfg.MediumRatePerMinute = 30
	}
}

// DefaultBotConfig returns a BotConfig populated with the default tuning
// values, for callers constructing the layer without a config file.
func DefaultBotConfig() BotConfig {
	var cfg BotConfig
	applyBotDefaults(&cfg)
	return cfg
}

func GetConfig() *Config {
	return &globalConfig
}
