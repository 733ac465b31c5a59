package storage

import (
	"context"
	"fmt"

	"github.com/dev-tams/dbbackup/internal/config"
	"github.com/dev-tams/dbbackup/internal/storage/local"
	s3store "github.com/dev-tams/dbbackup/internal/storage/s3"
)

// FromConfig builds the object store selected by s3.backend.
func FromConfig(ctx context.Context, cfg config.S3Config) (ObjectStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalPath == "" {
			return nil, fmt.Errorf("storage local: s3.local_path is required")
		}
		return local.New("local", cfg.LocalPath), nil

	case "", "s3":
		s, err := s3store.New(ctx, s3store.Options{
			Name:         "s3",
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			UsePathStyle: cfg.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("storage s3: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
