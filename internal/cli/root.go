package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ogulcanaydogan/ImageGen-Guardian/internal/config"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/alerts"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/pricing"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/providers"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/storage"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/tracker"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "imagegen",
	Short: "ImageGen Guardian - budget-capped DALL-E 3 image generation backend",
	Long: `ImageGen Guardian serves an HTTP API that forwards image generation requests
to an Azure OpenAI DALL-E 3 deployment and refuses new work once the monthly
spending cap is reached. Spend is tracked in a single current-month record.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.imagegen/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initPricing loads the pricing file, or the built-in prices when none is set.
func initPricing(cfg *config.Config) (*pricing.Table, error) {
	if cfg.Pricing.File == "" {
		return pricing.Default(), nil
	}
	return pricing.LoadFile(cfg.Pricing.File)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.New(cfg.Storage.Driver, cfg.Storage.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initProvider creates the Azure OpenAI image provider.
func initProvider(cfg *config.Config) (providers.ImageProvider, error) {
	return providers.NewAzureOpenAI(providers.AzureConfig{
		Endpoint:   cfg.Azure.Endpoint,
		APIKey:     cfg.Azure.APIKey,
		APIVersion: cfg.Azure.APIVersion,
		Deployment: cfg.Azure.Deployment,
		Timeout:    cfg.Azure.RequestTimeout,
	})
}

// initGenerator creates a fully wired generator. provider may be nil for
// commands that only read the budget.
func initGenerator(cfg *config.Config, provider providers.ImageProvider, m *metrics.Metrics, logger *slog.Logger) (*tracker.Generator, storage.Storage, error) {
	table, err := initPricing(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	ledger := tracker.NewLedger(store, nil, m, logger)
	guard := tracker.NewGuard(ledger, tracker.GuardConfig{
		MonthlyLimit:      cfg.Budget.MonthlyLimit,
		FailClosed:        cfg.Budget.FailClosed,
		AlertThresholdPct: cfg.Budget.AlertThresholdPct,
	}, initNotifiers(cfg), logger)

	return tracker.NewGenerator(guard, table, provider, m, logger), store, nil
}
