package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath        = "config.yaml"
	defaultPort              = "5000"
	defaultTokenPath         = "./tokens.json"
	defaultTokenGCSObject    = "ytrelay/tokens.json"
	defaultClientSecretName  = "youtube-client-secret"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxPayloadBytes   = 256 << 20
	defaultMaxMetadataBytes  = 1 << 20
	defaultUploadTimeout     = 30 * time.Minute
	defaultOAuthTimeout      = 30 * time.Second
	defaultExpirySkew        = 10 * time.Second
	defaultScope             = "https://www.googleapis.com/auth/youtube.upload"
)

type Config struct {
	Port             string
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	TokenPath        string
	TokenGCSBucket   string
	TokenGCSObject   string
	GCPProject       string
	ClientSecretName string

	Server     ServerConfig     `yaml:"server"`
	Upload     UploadConfig     `yaml:"upload"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Credential CredentialConfig `yaml:"credential"`
}

type ServerConfig struct {
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type UploadConfig struct {
	MaxPayloadBytes  int64         `yaml:"max_payload_bytes"`
	MaxMetadataBytes int64         `yaml:"max_metadata_bytes"`
	Timeout          time.Duration `yaml:"timeout"`
}

type OAuthConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Scopes  []string      `yaml:"scopes"`
}

type CredentialConfig struct {
	ExpirySkew time.Duration `yaml:"expiry_skew"`
}

// secretAccessor reads the payload of a Secret Manager secret version.
// Replaced in tests.
var secretAccessor = accessSecretVersion

func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:             getEnvOrDefault("PORT", defaultPort),
		ClientID:         os.Getenv("CLIENT_ID"),
		ClientSecret:     os.Getenv("CLIENT_SECRET"),
		RedirectURI:      os.Getenv("REDIRECT_URI"),
		TokenPath:        getEnvOrDefault("TOKEN_PATH", defaultTokenPath),
		TokenGCSBucket:   os.Getenv("TOKEN_GCS_BUCKET"),
		TokenGCSObject:   getEnvOrDefault("TOKEN_GCS_OBJECT", defaultTokenGCSObject),
		GCPProject:       os.Getenv("GOOGLE_CLOUD_PROJECT"),
		ClientSecretName: getEnvOrDefault("CLIENT_SECRET_NAME", defaultClientSecretName),
	}

	if err := loadYAMLConfig(cfg, getEnvOrDefault("CONFIG_PATH", defaultConfigPath)); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := resolveClientSecret(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate reports settings that the OAuth2 flow cannot work without.
func (c *Config) Validate() error {
	var errs []error
	if c.ClientID == "" {
		errs = append(errs, errors.New("CLIENT_ID is not set"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("CLIENT_SECRET is not set and no Secret Manager secret was found"))
	}
	if c.Upload.MaxPayloadBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_payload_bytes must be positive, got %d", c.Upload.MaxPayloadBytes))
	}
	return errors.Join(errs...)
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("No config file found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyUploadDefaults(cfg)
	applyOAuthDefaults(cfg)
	applyCredentialDefaults(cfg)
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = fmt.Sprintf("http://localhost:%s/oauth2callback", cfg.Port)
	}
}

func applyUploadDefaults(cfg *Config) {
	if cfg.Upload.MaxPayloadBytes == 0 {
		cfg.Upload.MaxPayloadBytes = defaultMaxPayloadBytes
	}
	if cfg.Upload.MaxMetadataBytes == 0 {
		cfg.Upload.MaxMetadataBytes = defaultMaxMetadataBytes
	}
	if cfg.Upload.Timeout == 0 {
		cfg.Upload.Timeout = defaultUploadTimeout
	}
}

func applyOAuthDefaults(cfg *Config) {
	if cfg.OAuth.Timeout == 0 {
		cfg.OAuth.Timeout = defaultOAuthTimeout
	}
	if len(cfg.OAuth.Scopes) == 0 {
		cfg.OAuth.Scopes = []string{defaultScope}
	}
}

func applyCredentialDefaults(cfg *Config) {
	if cfg.Credential.ExpirySkew == 0 {
		cfg.Credential.ExpirySkew = defaultExpirySkew
	}
}

func resolveClientSecret(ctx context.Context, cfg *Config) error {
	if cfg.ClientSecret != "" || cfg.GCPProject == "" {
		return nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", cfg.GCPProject, cfg.ClientSecretName)
	secret, err := secretAccessor(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve client secret: %w", err)
	}
	cfg.ClientSecret = secret
	slog.Debug("Client secret loaded from Secret Manager", "secret", cfg.ClientSecretName)
	return nil
}

func accessSecretVersion(ctx context.Context, name string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
