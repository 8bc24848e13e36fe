package app

import (
	"context"
	"fmt"
	"log/slog"

	"ytrelay/internal/credential"
	"ytrelay/internal/server"
	"ytrelay/internal/upload"
	"ytrelay/internal/youtube"
	"ytrelay/pkg/config"
)

// BuildCredentials wires the credential manager on its own, for CLI commands
// that never start the server. The returned close func releases the store.
func BuildCredentials(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*credential.Manager, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	provider := credential.NewOAuthProvider(credential.ProviderOptions{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		Timeout:      cfg.OAuth.Timeout,
	})

	manager := credential.NewManager(credential.ManagerOptions{
		Store:      store,
		Provider:   provider,
		Timeout:    cfg.OAuth.Timeout,
		ExpirySkew: cfg.Credential.ExpirySkew,
		Logger:     logger,
	})
	return manager, closeStore, nil
}

func BuildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	manager, closeStore, err := BuildCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	videos := youtube.NewClient(youtube.Options{Logger: logger})

	orchestrator := upload.NewOrchestrator(upload.Options{
		Credentials: manager,
		Videos:      videos,
		MaxPayload:  cfg.Upload.MaxPayloadBytes,
		Timeout:     cfg.Upload.Timeout,
		Logger:      logger,
	})

	srv := server.New(server.Options{
		Addr:              cfg.Addr(),
		Uploader:          orchestrator,
		Auth:              manager,
		MaxMetadata:       cfg.Upload.MaxMetadataBytes,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		Logger:            logger,
	})

	return NewService(ServiceOptions{
		Credentials: manager,
		Server:      srv,
		Closers:     []func() error{closeStore},
	}), nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (credential.Store, func() error, error) {
	if cfg.TokenGCSBucket == "" {
		store := credential.NewFileStore(cfg.TokenPath)
		logger.Info("Using credential file", "path", store.Path())
		return store, func() error { return nil }, nil
	}

	store, err := credential.NewGCSStore(ctx, cfg.TokenGCSBucket, cfg.TokenGCSObject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential bucket: %w", err)
	}
	logger.Info("Using credential object", "bucket", cfg.TokenGCSBucket, "object", cfg.TokenGCSObject)
	return store, store.Close, nil
}
