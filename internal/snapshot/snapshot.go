// Package snapshot archives page bodies that failed extraction so
// selector drift and block pages can be debugged offline. Writes are
// best-effort and never sit on the request path.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// maxSnapshotBytes truncates archived bodies.
const maxSnapshotBytes = 256 * 1024

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Archive stores truncated page bodies keyed by day and reason.
type Archive struct {
	store  BlobStore
	logger *zap.Logger
}

// New builds an Archive; store may be nil (archiving disabled).
func New(store BlobStore, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{store: store, logger: logger}
}

// Archive writes the body under snapshots/<date>/<reason>/<hash>.html.
// It detaches from the caller's deadline: the request is done with
// this data.
func (a *Archive) Archive(_ context.Context, reason string, body []byte) {
	if a.store == nil || len(body) == 0 {
		return
	}
	if len(body) > maxSnapshotBytes {
		body = body[:maxSnapshotBytes]
	}
	sum := sha256.Sum256(body)
	path := fmt.Sprintf("snapshots/%s/%s/%s.html",
		time.Now().UTC().Format("2006-01-02"), reason, hex.EncodeToString(sum[:8]))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		uri, err := a.store.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(body))
		if err != nil {
			a.logger.Warn("snapshot write failed", zap.String("reason", reason), zap.Error(err))
			return
		}
		a.logger.Debug("snapshot archived", zap.String("uri", uri))
	}()
}

// GCSStore implements BlobStore on Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore wires a bucket-backed store.
func NewGCSStore(client *storage.Client, bucket string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// PutObject uploads data and returns a gs:// URI.
func (s *GCSStore) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
