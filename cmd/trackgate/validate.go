package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/trackgate/internal/config"
	"github.com/goodtune/trackgate/internal/credentials"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and credentials source",
	Long:  `Validate the trackgate configuration and check that an API key/secret pair can be resolved.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	cfg, err := config.Load(configPath)
	if err != nil {
		red.Fprintf(out, "Configuration validation failed: %v\n", err)
		return err
	}
	green.Fprintf(out, "Configuration is valid: %s\n", configPath)

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  listen:        %s\n", cfg.Server.ListenAddr())
	fmt.Fprintf(out, "  route prefix:  %s\n", cfg.Server.RoutePrefix)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "  metrics:       %s:%d\n", cfg.Server.BindAddress, cfg.Metrics.Port)
	} else {
		fmt.Fprintf(out, "  metrics:       disabled\n")
	}
	fmt.Fprintf(out, "  upstream:      %s\n", cfg.Upstream.BaseURL)
	fmt.Fprintf(out, "  secrets file:  %s\n", cfg.Upstream.SecretsFile)
	fmt.Fprintf(out, "  logging:       %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Fprintln(out)

	creds, err := credentials.Resolve(cfg.Upstream.APIKey, cfg.Upstream.APISecret, cfg.Upstream.SecretsFile)
	if err != nil {
		red.Fprintf(out, "Credentials could not be resolved: %v\n", err)
		return fmt.Errorf("could not get credentials: %w", err)
	}
	green.Fprintf(out, "Credentials resolved: %s\n", creds)

	return nil
}
