package credential

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore keeps the credential as a single Cloud Storage object. An object
// write only becomes visible when the writer closes successfully, so a failed
// write leaves the previous generation in place.
type GCSStore struct {
	client *storage.Client
	bucket string
	object string
}

func NewGCSStore(ctx context.Context, bucket, object string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewGCSStoreWithClient(client, bucket, object), nil
}

func NewGCSStoreWithClient(client *storage.Client, bucket, object string) *GCSStore {
	return &GCSStore{
		client: client,
		bucket: bucket,
		object: object,
	}
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) ReadAll(ctx context.Context) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, s.object, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return data, nil
}

func (s *GCSStore) AtomicWrite(ctx context.Context, data []byte) error {
	// Cancelling the writer's context abandons the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", s.bucket, s.object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return nil
}
