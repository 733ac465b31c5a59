package prunable

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Prunable is the subset of an object store the retention sweep needs.
// ListObjects must return the complete listing under prefix.
type Prunable interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
