// Package upload validates an incoming video and its metadata, obtains a
// usable credential and drives a single streamed upload to the video API.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"ytrelay/internal/credential"
)

const (
	DefaultMaxPayload = 256 << 20
	DefaultTimeout    = 30 * time.Minute
)

// CredentialSource hands out a credential that is ready to use.
type CredentialSource interface {
	Acquire(ctx context.Context) (*credential.Credential, error)
}

// VideoCreator creates a video from the media stream and returns its id.
type VideoCreator interface {
	CreateVideo(ctx context.Context, token *oauth2.Token, video Video, media io.Reader) (string, error)
}

type Result struct {
	VideoID string
	Title   string
}

type Options struct {
	Credentials CredentialSource
	Videos      VideoCreator
	// MaxPayload caps the streamed video size in bytes.
	MaxPayload int64
	Timeout    time.Duration
	Logger     *slog.Logger
}

type Orchestrator struct {
	credentials CredentialSource
	videos      VideoCreator
	maxPayload  int64
	timeout     time.Duration
	logger      *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		credentials: opts.Credentials,
		videos:      opts.Videos,
		maxPayload:  opts.MaxPayload,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
	if o.maxPayload <= 0 {
		o.maxPayload = DefaultMaxPayload
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func (o *Orchestrator) MaxPayload() int64 {
	return o.maxPayload
}

// Submit uploads payload with the metadata in rawMetadata. It makes exactly
// one upload attempt; cancelling ctx aborts the outbound stream.
func (o *Orchestrator) Submit(ctx context.Context, payload io.Reader, rawMetadata []byte) (*Result, error) {
	video, err := ParseMetadata(rawMetadata)
	if err != nil {
		return nil, err
	}

	media, err := requirePayload(payload)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Upload requested",
		"title", video.Title,
		"tags", len(video.Tags),
		"category", video.CategoryID,
		"privacy", video.PrivacyStatus,
	)

	cred, err := o.credentials.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire credential: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	limited := newLimitedReader(media, o.maxPayload)
	start := time.Now()

	videoID, err := o.videos.CreateVideo(ctx, cred.Token(), video, limited)
	if limited.Exceeded() {
		return nil, &PayloadTooLargeError{Limit: o.maxPayload}
	}
	if err != nil {
		o.logger.Error("Upload failed", "title", video.Title, "error", err, "duration", time.Since(start))
		return nil, asUpstreamError(err)
	}
	if videoID == "" {
		return nil, &UpstreamError{Message: "response carried no video id"}
	}

	o.logger.Info("Upload complete", "title", video.Title, "video_id", videoID, "duration", time.Since(start))
	return &Result{VideoID: videoID, Title: video.Title}, nil
}

func asUpstreamError(err error) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return err
	}
	return &UpstreamError{Message: err.Error(), Err: err}
}
