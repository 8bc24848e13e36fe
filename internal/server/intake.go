package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"

	"github.com/labstack/echo/v4"

	"ytrelay/internal/upload"
)

const (
	fieldVideo    = "video"
	fieldMetadata = "json"
)

// handleUpload reads the multipart body part by part. A video part that
// arrives after the metadata is streamed straight into the upload; one that
// arrives first is spooled to disk until the metadata has been read.
func (s *Server) handleUpload(c echo.Context) error {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		return s.respondError(c, &upload.ValidationError{Reason: "expected multipart/form-data body"})
	}

	var (
		metadata  []byte
		haveMeta  bool
		spool     *os.File
		videoName string
	)
	defer func() {
		if spool != nil {
			removeSpool(spool)
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.respondError(c, fmt.Errorf("failed to read multipart body: %w", err))
		}

		switch part.FormName() {
		case fieldMetadata:
			if haveMeta {
				continue
			}
			metadata, err = s.readMetadata(part)
			if err != nil {
				return s.respondError(c, err)
			}
			haveMeta = true

		case fieldVideo:
			if spool != nil {
				continue
			}
			videoName = part.FileName()
			if haveMeta {
				s.logger.Info("Streaming video part", "file", videoName)
				return s.submit(c, part, metadata)
			}
			spool, err = spoolPart(part, s.uploader.MaxPayload())
			if err != nil {
				return s.respondError(c, err)
			}
		}
	}

	if spool == nil {
		return s.submit(c, nil, metadata)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return s.respondError(c, fmt.Errorf("failed to rewind spooled video: %w", err))
	}
	s.logger.Info("Uploading spooled video part", "file", videoName)
	return s.submit(c, spool, metadata)
}

func (s *Server) submit(c echo.Context, payload io.Reader, metadata []byte) error {
	result, err := s.uploader.Submit(c.Request().Context(), payload, metadata)
	if err != nil {
		return s.respondError(c, err)
	}
	return s.respondUploaded(c, result)
}

func (s *Server) readMetadata(part *multipart.Part) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, s.maxMetadata+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata part: %w", err)
	}
	if int64(len(data)) > s.maxMetadata {
		return nil, &upload.PayloadTooLargeError{Limit: s.maxMetadata}
	}
	return data, nil
}

// spoolPart copies part to a temp file, failing once it passes limit bytes.
func spoolPart(part *multipart.Part, limit int64) (*os.File, error) {
	f, err := os.CreateTemp("", "ytrelay-video-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(part, limit+1))
	if err != nil {
		removeSpool(f)
		return nil, fmt.Errorf("failed to spool video part: %w", err)
	}
	if n > limit {
		removeSpool(f)
		return nil, &upload.PayloadTooLargeError{Limit: limit}
	}
	return f, nil
}

func removeSpool(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}
