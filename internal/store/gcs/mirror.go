// Package gcs mirrors persisted assets to a Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Mirror uploads asset bytes to a bucket under an optional prefix. Uploads
// are best-effort from the pipeline's point of view; the local write is the
// source of truth.
type Mirror struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New opens a client and verifies the bucket is reachable before any item
// work starts.
func New(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("bucket %s unavailable: %w", bucket, err)
	}
	return &Mirror{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Upload writes data to <prefix>/<name> in the bucket.
func (m *Mirror) Upload(ctx context.Context, name string, data []byte) error {
	object := name
	if m.prefix != "" {
		object = path.Join(m.prefix, name)
	}
	w := m.client.Bucket(m.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", m.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", m.bucket, object, err)
	}
	m.logger.Debug("asset mirrored",
		zap.String("bucket", m.bucket),
		zap.String("object", object),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close releases the underlying client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
