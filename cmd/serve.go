package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytrelay/internal/app"
	"ytrelay/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload gateway",
	Long:  `Serve /auth, /oauth2callback and /upload until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	service, err := app.BuildService(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			slog.Warn("Failed to release resources", "error", err)
		}
	}()

	status, err := service.Credentials().Status(ctx)
	if err != nil {
		slog.Warn("Could not read stored credential", "error", err)
	} else if !status.Authenticated {
		slog.Info("No stored credential, visit /auth to authenticate", "redirect_uri", cfg.RedirectURI)
	}

	return service.Run(ctx)
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
