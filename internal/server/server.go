// Package server exposes the upload gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ytrelay/internal/credential"
	"ytrelay/internal/upload"
)

const (
	DefaultMaxMetadata       = 1 << 20
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// Uploader runs one upload for an incoming request.
type Uploader interface {
	Submit(ctx context.Context, payload io.Reader, rawMetadata []byte) (*upload.Result, error)
	MaxPayload() int64
}

// Authenticator drives the interactive OAuth2 flow and reports its state.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*credential.Credential, error)
	Status(ctx context.Context) (credential.Status, error)
}

type Options struct {
	Addr              string
	Uploader          Uploader
	Auth              Authenticator
	MaxMetadata       int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Logger            *slog.Logger
}

type Server struct {
	echo            *echo.Echo
	http            *http.Server
	uploader        Uploader
	auth            Authenticator
	maxMetadata     int64
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func New(opts Options) *Server {
	s := &Server{
		echo:            echo.New(),
		uploader:        opts.Uploader,
		auth:            opts.Auth,
		maxMetadata:     opts.MaxMetadata,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger,
	}
	if s.maxMetadata <= 0 {
		s.maxMetadata = DefaultMaxMetadata
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	readHeaderTimeout := opts.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = defaultReadHeaderTimeout
	}
	// No read or write timeout: request bodies are long video streams bounded
	// by the upload timeout instead.
	s.http = &http.Server{
		Addr:              opts.Addr,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger.SetOutput(io.Discard)

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.CORS())
	s.echo.Use(s.requestLogger())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.handleWelcome)
	s.echo.GET("/auth", s.handleAuth)
	s.echo.GET("/oauth2callback", s.handleCallback)
	s.echo.POST("/upload", s.handleUpload)
	s.echo.GET("/healthz", s.handleHealth)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.http.Addr)
		errCh <- s.echo.StartServer(s.http)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				s.logger.Error("Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			s.logger.Debug("Request", attrs...)
			return nil
		},
	})
}
