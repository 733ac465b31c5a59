package storage

import (
	"context"

	"github.com/dev-tams/dbbackup/internal/storage/prunable"
)

type ObjectInfo = prunable.ObjectInfo

// ObjectStore uploads dump files and manages the remote backup listing.
type ObjectStore interface {
	prunable.Prunable
	Name() string
	// PutObject uploads the file at localPath to bucket/key.
	PutObject(ctx context.Context, bucket, key, localPath string) error
}
