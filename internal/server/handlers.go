package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ytrelay/internal/credential"
	"ytrelay/internal/upload"
)

const (
	msgWelcome          = "Welcome to the YouTube Uploader Backend!"
	msgAuthSuccess      = "Authentication successful! You can close this tab."
	msgUploaded         = "Video uploaded to YouTube successfully!"
	msgNotAuthenticated = "Please authenticate first by visiting /auth"
	msgAuthExpired      = "Token expired & refresh failed. Please authenticate again at /auth"
	msgStorage          = "Stored credential could not be accessed"
)

type uploadResponse struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	VideoID string `json:"videoId"`
}

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) handleWelcome(c echo.Context) error {
	return c.String(http.StatusOK, msgWelcome)
}

func (s *Server) handleAuth(c echo.Context) error {
	return c.Redirect(http.StatusFound, s.auth.AuthCodeURL(uuid.NewString()))
}

func (s *Server) handleCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.String(http.StatusBadRequest, "Authentication failed: missing code")
	}

	if _, err := s.auth.Exchange(c.Request().Context(), code); err != nil {
		s.logger.Error("Authentication failed", "error", err)
		return c.String(http.StatusInternalServerError, "Authentication failed: "+err.Error())
	}

	s.logger.Info("Authentication completed")
	return c.String(http.StatusOK, msgAuthSuccess)
}

func (s *Server) handleHealth(c echo.Context) error {
	status, err := s.auth.Status(c.Request().Context())
	if err != nil {
		s.logger.Warn("Could not read credential status", "error", err)
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Authenticated: status.Authenticated})
}

func (s *Server) respondUploaded(c echo.Context, result *upload.Result) error {
	return c.JSON(http.StatusOK, uploadResponse{
		Message: msgUploaded,
		Title:   result.Title,
		VideoID: result.VideoID,
	})
}

func (s *Server) respondError(c echo.Context, err error) error {
	status, message := classify(err)

	attrs := []any{"error", err, "status", status, "request_id", c.Response().Header().Get(echo.HeaderXRequestID)}
	var upstream *upload.UpstreamError
	if errors.As(err, &upstream) {
		attrs = append(attrs, "upstream_status", upstream.Status, "transient", upstream.Transient())
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Upload failed", attrs...)
	} else {
		s.logger.Warn("Upload rejected", attrs...)
	}
	return c.JSON(status, errorResponse{Error: true, Message: message})
}

// classify maps the upload error taxonomy onto an HTTP status and the
// message shown to the client.
func classify(err error) (int, string) {
	var (
		tooLarge   *upload.PayloadTooLargeError
		validation *upload.ValidationError
		upstream   *upload.UpstreamError
		storageErr *credential.StorageError
	)
	switch {
	case errors.Is(err, credential.ErrNotAuthenticated):
		return http.StatusUnauthorized, msgNotAuthenticated
	case errors.Is(err, credential.ErrAuthExpired):
		return http.StatusUnauthorized, msgAuthExpired
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, tooLarge.Error()
	case errors.As(err, &validation):
		return http.StatusInternalServerError, validation.Error()
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, upstream.Error()
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, msgStorage
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
