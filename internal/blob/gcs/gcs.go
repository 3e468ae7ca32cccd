// Package gcs stores capsule media in a Google Cloud Storage bucket and
// hands out time-limited signed GET URLs.
package gcs

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/siminyang/aboutxtime/internal/blob"
)

const signedURLTTL = 96 * time.Hour

type Store struct {
	bucket *storage.BucketHandle
}

var _ blob.Store = (*Store)(nil)

// New connects a client and binds the bucket. Credentials come from the
// ambient service account.
func New(ctx context.Context, bucketName string) (*Store, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs bucket name is empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{bucket: client.Bucket(bucketName)}, nil
}

// NewWithBucket binds an existing bucket handle, used in tests.
func NewWithBucket(bucket *storage.BucketHandle) *Store {
	return &Store{bucket: bucket}
}

func (s *Store) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	obj := s.bucket.Object(path)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", path, err)
	}
	url, err := s.bucket.SignedURL(path, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(signedURLTTL),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign %s: %w", path, err)
	}
	return url, nil
}
