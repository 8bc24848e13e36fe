package upload

import (
	"fmt"

	"ytrelay/pkg/httputil"
)

// ValidationError rejects a request before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PayloadTooLargeError means the video stream ran past the configured limit.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("video exceeds the %d byte limit", e.Limit)
}

// UpstreamError is a failed or partial upload attempt. Status is the HTTP
// status returned by the video API, or 0 when no response was received.
type UpstreamError struct {
	Status  int
	Reason  string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Reason != "":
		return fmt.Sprintf("upstream rejected upload (%d %s): %s", e.Status, e.Reason, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("upstream rejected upload (%d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("upstream upload failed: %s", e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transient reports whether resubmitting the same request may succeed.
// Nothing in this package acts on it; resubmission is the caller's call.
func (e *UpstreamError) Transient() bool {
	if e.Status == 0 {
		return httputil.IsTransientError(e.Err)
	}
	return httputil.IsTransientStatus(e.Status)
}
