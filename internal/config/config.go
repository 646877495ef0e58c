package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"probeview/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// AppName is used for config search paths and log tagging
var AppName = "probeview"

// Config represents dashboard configuration
type Config struct {
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Live      LiveConfig      `mapstructure:"live"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	API       APIConfig       `mapstructure:"api"`
	Log       logger.Config   `mapstructure:"log"`
}

// DashboardConfig represents dashboard instance configuration
type DashboardConfig struct {
	ID     string `mapstructure:"id"`
	Listen string `mapstructure:"listen"`
}

// GatewayConfig represents fetch gateway configuration
type GatewayConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
	TLS     TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LiveConfig represents live polling configuration
type LiveConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	LookbackSeconds int           `mapstructure:"lookback_seconds"`
}

// DispatchConfig represents diagnostic dispatch polling configuration
type DispatchConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// APIConfig represents HTTP API configuration
type APIConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// LoadConfig loads the dashboard configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dashboard")
	}
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/" + AppName)
	v.AddConfigPath("/etc/" + AppName)
	if ex, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Dir(ex))
	}
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values if not specified
func setDefaults(config *Config) {
	if config.Dashboard.ID == "" {
		config.Dashboard.ID = uuid.New().String()
	}
	if config.Dashboard.Listen == "" {
		config.Dashboard.Listen = ":8090"
	}
	if config.Gateway.Timeout <= 0 {
		config.Gateway.Timeout = 10 * time.Second
	}
	if config.Live.PollInterval <= 0 {
		config.Live.PollInterval = 2 * time.Second
	}
	if config.Live.LookbackSeconds <= 0 {
		config.Live.LookbackSeconds = 60
	}
	if config.Dispatch.PollInterval <= 0 {
		config.Dispatch.PollInterval = 2 * time.Second
	}
	if config.Dispatch.MaxAttempts <= 0 {
		config.Dispatch.MaxAttempts = 30
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Gateway.Address == "" {
		return fmt.Errorf("gateway address is required")
	}
	if config.Gateway.TLS.Enabled {
		if config.Gateway.TLS.CertFile == "" || config.Gateway.TLS.KeyFile == "" {
			return fmt.Errorf("tls cert_file and key_file are required when tls is enabled")
		}
	}
	if err := config.Log.Validate(); err != nil {
		return err
	}
	return nil
}
