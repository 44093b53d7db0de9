package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/trackgate/internal/config"
	"github.com/goodtune/trackgate/internal/credentials"
	"github.com/goodtune/trackgate/internal/timeular"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var signinTimeout time.Duration

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Check the upstream sign-in exchange",
	Long: `Resolve the API key/secret exactly as the server would and perform the
sign-in exchange once, without starting any listener.`,
	Example: `  trackgate signin
  API_KEY=... API_SECRET=... trackgate -c config.yaml signin`,
	Args: cobra.NoArgs,
	RunE: runSignIn,
}

func init() {
	signinCmd.Flags().DurationVar(&signinTimeout, "timeout", 30*time.Second, "Give up on the sign-in call after this long")
	rootCmd.AddCommand(signinCmd)
}

func runSignIn(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(cmd.ErrOrStderr()).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	out := cmd.OutOrStdout()
	creds, err := credentials.Resolve(cfg.Upstream.APIKey, cfg.Upstream.APISecret, cfg.Upstream.SecretsFile)
	if err != nil {
		printSignInResult(out, cfg.Upstream.BaseURL, credentials.Credentials{}, timeular.Session{}, err)
		return fmt.Errorf("could not get credentials: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), signinTimeout)
	defer cancel()

	client := timeular.NewClient(cfg.Upstream.BaseURL, &http.Client{}, logger)
	session, err := client.SignIn(ctx, creds.APIKey, creds.APISecret)
	printSignInResult(out, cfg.Upstream.BaseURL, creds, session, err)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	return nil
}

// printSignInResult prints the sign-in check result with colors
func printSignInResult(w io.Writer, baseURL string, creds credentials.Credentials, session timeular.Session, err error) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Fprintln(w, "UPSTREAM SIGN-IN CHECK")
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Upstream:    %s\n", baseURL)
	if creds.Source != "" {
		fmt.Fprintf(w, "Credentials: %s\n", creds)
	} else {
		fmt.Fprintf(w, "Credentials: (unresolved)\n")
	}
	fmt.Fprintln(w)

	cyan.Fprint(w, "Result:      ")
	if err != nil {
		red.Fprintln(w, "FAILED")
		fmt.Fprintf(w, "             → %v\n", err)
	} else {
		green.Fprintln(w, "OK")
		fmt.Fprintf(w, "             → token %s\n", credentials.Redact(session.Token()))
	}

	fmt.Fprintln(w)
	cyan.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)
}
