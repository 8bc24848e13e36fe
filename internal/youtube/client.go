// Package youtube creates videos through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytrelay/internal/upload"
	"ytrelay/pkg/httputil"
)

const watchURLFormat = "https://youtube.com/watch?v=%s"

var _ upload.VideoCreator = (*Client)(nil)

type Options struct {
	// Endpoint overrides the API base URL.
	Endpoint string
	// HTTPClient is the transport under the OAuth2 layer. It must not carry
	// an overall timeout shorter than an upload; cancellation comes from ctx.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:   opts.Endpoint,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(-1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CreateVideo sends one multipart insert request. The media reader is
// streamed into the request body; nothing is chunked or retried.
func (c *Client) CreateVideo(ctx context.Context, token *oauth2.Token, video upload.Video, media io.Reader) (string, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to create YouTube service: %w", err)
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, toResource(video)).
		Media(media, googleapi.ChunkSize(0)).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return "", translateError(err)
	}

	c.logger.Debug("Video inserted", "video_id", resp.Id, "url", WatchURL(resp.Id))
	return resp.Id, nil
}

func (c *Client) service(ctx context.Context, token *oauth2.Token) (*youtube.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(base, oauth2.StaticTokenSource(token))

	opts := []option.ClientOption{option.WithHTTPClient(authed)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return youtube.NewService(ctx, opts...)
}

func toResource(video upload.Video) *youtube.Video {
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       video.Title,
			Description: video.Description,
			Tags:        video.Tags,
			CategoryId:  video.CategoryID,
			// Empty description and tags are sent explicitly.
			ForceSendFields: []string{"Description", "Tags"},
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: video.PrivacyStatus,
		},
	}
}

func translateError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		upstream := &upload.UpstreamError{
			Status:  apiErr.Code,
			Message: apiErr.Message,
			Err:     err,
		}
		if len(apiErr.Errors) > 0 {
			upstream.Reason = apiErr.Errors[0].Reason
		}
		if upstream.Message == "" {
			upstream.Message = http.StatusText(apiErr.Code)
		}
		return upstream
	}
	return &upload.UpstreamError{Message: err.Error(), Err: err}
}

func WatchURL(videoID string) string {
	return fmt.Sprintf(watchURLFormat, videoID)
}
