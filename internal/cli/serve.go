package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/internal/server"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the image generation API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Listen port (default from config or PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg)

	provider, err := initProvider(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	gen, store, err := initGenerator(cfg, provider, m, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	apiServer := server.NewServer(gen, m, server.Options{
		AllowedOrigin: cfg.Server.AllowedOrigin,
		MaxBodySize:   cfg.Server.MaxBodySize,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		status := gen.Status(cmd.Context())
		logger.Info("server started",
			"listen", srv.Addr,
			"deployment", gen.Deployment(),
			"monthly_limit", status.Limit,
			"month_spent", status.Spent,
		)
		fmt.Fprintf(os.Stderr, "ImageGen Guardian listening on %s\n", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	gen.Wait()
	logger.Info("server stopped")
	return nil
}
