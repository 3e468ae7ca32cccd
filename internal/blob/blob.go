// Package blob abstracts media storage for capsule attachments. Adapters
// live under internal/blob/<driver>/; the delivery synchronizer only sees
// Put and the object-path helpers.
package blob

import (
	"context"
	"fmt"
	"io"
)

// Store writes a media object and returns the URL persisted on the capsule
// content entry.
type Store interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) (url string, err error)
}

// Reader is implemented by adapters that serve object bytes back, used by
// the media HTTP route. The GCS adapter does not implement it; signed URLs
// bypass the service.
type Reader interface {
	Get(ctx context.Context, path string) (rc io.ReadCloser, contentType string, err error)
}

// Object paths are keyed by capsule and contributor so a re-submit of the
// same draft overwrites rather than leaks.

func ImagePath(capsuleID, userID string) string {
	return fmt.Sprintf("images/%s/%s.jpg", capsuleID, userID)
}

func AudioPath(capsuleID, userID string) string {
	return fmt.Sprintf("audio/%s/%s.m4a", capsuleID, userID)
}

func VideoPath(capsuleID, userID string) string {
	return fmt.Sprintf("videos/%s/%s.mp4", capsuleID, userID)
}
