package core

import (
	"context"
	"io"
	"time"
)

// FileStorage abstracts where diagram and export bytes live.
type FileStorage interface {
	// Save writes the content under the given relative path and returns a
	// URL the frontend can serve the file from.
	Save(ctx context.Context, path string, content io.Reader) (url string, err error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	// DeleteOlderThan removes all files under prefix last modified before the
	// cutoff; used by periodic cleanup jobs.
	DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) error
}
