package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

var errPayloadTooLarge = errors.New("payload too large")

// requirePayload fails when the stream is absent or yields no bytes. It only
// peeks; the returned reader replays the peeked byte.
func requirePayload(r io.Reader) (io.Reader, error) {
	if r == nil {
		return nil, &ValidationError{Reason: "missing video file"}
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Reason: "missing video file"}
		}
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	return br, nil
}

// limitedReader fails the read that would cross limit instead of silently
// truncating, so the upstream request is aborted rather than completed with
// a cut-off file. Reads may come from the transport's goroutine.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  atomic.Bool
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, remaining: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			l.exceeded.Store(true)
			return 0, errPayloadTooLarge
		}
		return 0, err
	}

	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedReader) Exceeded() bool {
	return l.exceeded.Load()
}
