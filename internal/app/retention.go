package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dev-tams/dbbackup/internal/config"
	"github.com/dev-tams/dbbackup/internal/retention"
	"github.com/dev-tams/dbbackup/internal/storage/prunable"
)

// PruneRequest carries the prune command line. Empty fields fall back to
// the s3 section of the config.
type PruneRequest struct {
	Bucket string
	PathS3 string
	Days   string
}

// RunPrune sweeps expired backups without taking a new one.
func RunPrune(ctx context.Context, deps Deps, cfg *config.Config, req PruneRequest) (*retention.SweepResult, error) {
	deps = deps.withDefaults()

	target := &remoteTarget{
		bucket: strings.TrimSpace(req.Bucket),
		prefix: strings.TrimSpace(req.PathS3),
	}
	if target.bucket == "" {
		target.bucket = cfg.S3.Bucket
	}
	if target.prefix == "" {
		target.prefix = cfg.S3.Path
	}
	if target.prefix == "" {
		target.prefix = config.DefaultRemotePath
	}

	days, err := resolveRetentionDays(req.Days, cfg.S3.RetentionDays)
	if err != nil {
		return nil, err
	}
	target.days = days

	st, err := deps.OpenStore(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}

	return runSweep(ctx, deps, st, cfg.S3, target, log.Logger)
}

func resolveRetentionDays(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) != "" {
		return retention.ParseDays(raw)
	}
	if fallback <= 0 {
		return 0, &retention.ConfigurationError{
			Field:  "data-retention-s3",
			Reason: "no value given and s3.retention_days is not set",
		}
	}
	return fallback, nil
}

func runSweep(ctx context.Context, deps Deps, st prunable.Prunable, s3cfg config.S3Config, t *remoteTarget, logger zerolog.Logger) (*retention.SweepResult, error) {
	sw := retention.NewSweeper(st,
		retention.WithClock(deps.Now),
		retention.WithConcurrency(s3cfg.DeleteConcurrency),
		retention.WithLogger(logger),
	)

	res, err := sw.Sweep(ctx, t.bucket, t.prefix, t.days)
	if res != nil {
		fmt.Fprintln(deps.Stdout, res.Summary())
	}
	if err != nil {
		logger.Error().Err(err).Str("bucket", t.bucket).Msg("retention sweep failed")
		return res, fmt.Errorf("data retention: %w", err)
	}
	return res, nil
}
