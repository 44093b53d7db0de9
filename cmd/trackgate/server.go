package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/trackgate/internal/api"
	"github.com/goodtune/trackgate/internal/config"
	"github.com/goodtune/trackgate/internal/credentials"
	"github.com/goodtune/trackgate/internal/metrics"
	"github.com/goodtune/trackgate/internal/systemd"
	"github.com/goodtune/trackgate/internal/timeular"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start trackgate server",
	Long:  `Sign in to the upstream API, then serve the REST API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging, os.Stdout)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("Starting trackgate")

	// Sign in before anything binds; failure here is fatal
	client := timeular.NewClient(cfg.Upstream.BaseURL, &http.Client{}, logger)
	session, err := bootstrapSession(cmd.Context(), cfg, client, logger)
	if err != nil {
		return err
	}

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize REST server
	apiServer := api.NewServer(
		api.Config{
			ListenAddr:  cfg.Server.ListenAddr(),
			RoutePrefix: cfg.Server.RoutePrefix,
		},
		api.NewActivityHandler(client, session, logger),
		logger,
	)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start REST server: %w", err)
	}

	logger.Info().
		Str("addr", apiServer.Addr()).
		Str("prefix", cfg.Server.RoutePrefix).
		Msg("REST server started")

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
		logger.Info().Str("addr", metricsAddr).Msg("Metrics Server started")
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error stopping REST server")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("trackgate stopped")

	return nil
}

// bootstrapSession resolves credentials and performs the one-time sign-in.
// There is no retry: any error aborts startup.
func bootstrapSession(ctx context.Context, cfg *config.Config, client *timeular.Client, logger zerolog.Logger) (timeular.Session, error) {
	creds, err := credentials.Resolve(cfg.Upstream.APIKey, cfg.Upstream.APISecret, cfg.Upstream.SecretsFile)
	if err != nil {
		return timeular.Session{}, fmt.Errorf("could not get credentials: %w", err)
	}

	logger.Info().Str("source", string(creds.Source)).Msg("Logging in...")

	session, err := client.SignIn(ctx, creds.APIKey, creds.APISecret)
	if err != nil {
		return timeular.Session{}, fmt.Errorf("could not get the session token: %w", err)
	}

	logger.Info().Msg("Signed in to upstream API")
	return session, nil
}
