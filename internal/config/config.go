package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all ImageGen Guardian configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Azure   AzureConfig   `mapstructure:"azure"`
	Budget  BudgetConfig  `mapstructure:"budget"`
	Storage StorageConfig `mapstructure:"storage"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig defines HTTP API settings.
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	AllowedOrigin string        `mapstructure:"allowed_origin"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxBodySize   int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AzureConfig defines the Azure OpenAI deployment.
type AzureConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	APIVersion     string        `mapstructure:"api_version"`
	Deployment     string        `mapstructure:"deployment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BudgetConfig defines the monthly spending cap.
type BudgetConfig struct {
	MonthlyLimit      float64 `mapstructure:"monthly_limit"`
	FailClosed        bool    `mapstructure:"fail_closed"`
	AlertThresholdPct float64 `mapstructure:"alert_threshold_pct"`
}

// StorageConfig defines where the cost record is persisted.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// PricingConfig defines pricing data settings. An empty File uses the
// built-in DALL-E 3 prices.
type PricingConfig struct {
	File string `mapstructure:"file"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// LoggingConfig defines logging settings. When File is set, logs are also
// written to a rotating file.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// envAliases binds the conventional unprefixed variable names.
var envAliases = map[string]string{
	"azure.endpoint":        "AZURE_OPENAI_ENDPOINT",
	"azure.api_key":         "AZURE_OPENAI_API_KEY",
	"azure.api_version":     "AZURE_OPENAI_API_VERSION",
	"azure.deployment":      "AZURE_OPENAI_DEPLOYMENT_NAME",
	"server.allowed_origin": "FRONTEND_URL",
	"server.port":           "PORT",
}

// Load reads configuration from a .env file, the config file and
// environment variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".imagegen"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.allowed_origin", "http://localhost:5173")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.max_body_size", 1<<20) // 1 MiB
	v.SetDefault("azure.api_version", "2024-02-01")
	v.SetDefault("azure.deployment", "dall-e-3")
	v.SetDefault("azure.request_timeout", "120s")
	v.SetDefault("budget.monthly_limit", 4.00)
	v.SetDefault("budget.fail_closed", false)
	v.SetDefault("budget.alert_threshold_pct", 80.0)
	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.path", "cost_tracking.json")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("alerts.slack.channel", "#imagegen-costs")

	// Environment variables
	v.SetEnvPrefix("IMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		prefixed := "IMG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings required to serve generation requests.
func (c *Config) Validate() error {
	var errs []error

	if c.Azure.Endpoint == "" {
		errs = append(errs, errors.New("azure.endpoint (AZURE_OPENAI_ENDPOINT) is required"))
	}
	if c.Azure.APIKey == "" {
		errs = append(errs, errors.New("azure.api_key (AZURE_OPENAI_API_KEY) is required"))
	}
	if c.Azure.APIVersion == "" {
		errs = append(errs, errors.New("azure.api_version (AZURE_OPENAI_API_VERSION) is required"))
	}
	if c.Budget.MonthlyLimit < 0 {
		errs = append(errs, fmt.Errorf("budget.monthly_limit must not be negative, got %.2f", c.Budget.MonthlyLimit))
	}
	if c.Budget.AlertThresholdPct <= 0 || c.Budget.AlertThresholdPct > 100 {
		errs = append(errs, fmt.Errorf("budget.alert_threshold_pct must be in (0, 100], got %g", c.Budget.AlertThresholdPct))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "", "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be json or sqlite, got %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}
