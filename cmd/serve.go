package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denysvitali/foldgen/pkg/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve fold computation over HTTP",
	Long: `Start an HTTP server that computes fold lists on request and writes
<file>.testdata fixtures for paths below the working directory.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "Port to listen on")
	serveCmd.Flags().String("working-dir", "", "Directory relative request paths are resolved against")
	serveCmd.Flags().String("session-api-key", "", "API key for session authentication")
	serveCmd.Flags().Int("cache-size", 256, "Number of computed fold lists to keep per source hash")
	serveCmd.Flags().String("otel-endpoint", "", "OpenTelemetry endpoint (if empty, uses auto-export)")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.working_dir", serveCmd.Flags().Lookup("working-dir"))
	_ = viper.BindPFlag("server.session_api_key", serveCmd.Flags().Lookup("session-api-key"))
	_ = viper.BindPFlag("server.cache_size", serveCmd.Flags().Lookup("cache-size"))
	_ = viper.BindPFlag("telemetry.endpoint", serveCmd.Flags().Lookup("otel-endpoint"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting foldgen server")

	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	computer, closeComputer, err := newComputer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeComputer()

	srv, err := server.New(cfg, logger, computer)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
		logger.Info("Received shutdown signal, shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
