package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore keeps uploaded screenshots. Put returns a URI that Get accepts.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, uri string) ([]byte, error)
}

// NewKey builds a unique object key for an uploaded file, grouped by day,
// e.g. "screenshots/2025/10/12/<uuid>.png".
func NewKey(originalName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(originalName))
	return path.Join("screenshots", now.Format("2006/01/02"), uuid.New().String()+ext)
}
