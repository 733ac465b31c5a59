// Package retention deletes remote backups that are older than a retention
// window. Age comes from the Unix timestamp embedded in each object name.
package retention

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dev-tams/dbbackup/internal/storage/prunable"
)

type Sweeper struct {
	store       prunable.Prunable
	now         func() time.Time
	concurrency int
	logger      zerolog.Logger
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithConcurrency bounds how many deletes run at once. Values below 2 keep
// deletes sequential.
func WithConcurrency(n int) Option {
	return func(s *Sweeper) { s.concurrency = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func NewSweeper(store prunable.Prunable, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:       store,
		now:         time.Now,
		concurrency: 1,
		logger:      log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SweepResult describes one sweep. Deleted keeps listing order.
type SweepResult struct {
	Bucket         string
	Prefix         string
	Cutoff         time.Time
	Deleted        []string
	Retained       int
	Unclassifiable []string
	Failures       []*DeleteError
}

func (r *SweepResult) DeletedCount() int { return len(r.Deleted) }

func (r *SweepResult) FailedCount() int { return len(r.Failures) }

func (r *SweepResult) UnclassifiableCount() int { return len(r.Unclassifiable) }

// Err is nil when every delete succeeded. Otherwise it wraps each
// *DeleteError.
func (r *SweepResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return fmt.Errorf("retention sweep completed with %d delete failure(s): %w", len(r.Failures), errors.Join(errs...))
}

// Summary renders the result for humans.
func (r *SweepResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retaining data where date is greater than %s\n", r.Cutoff.Format("2006-01-02"))
	for _, k := range r.Deleted {
		fmt.Fprintf(&b, "The following file is beyond data retention and was deleted: %s\n", k)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "Failed to delete %s: %v\n", f.Key, f.Err)
	}
	fmt.Fprintf(&b, "%d file(s) were deleted, %d retained, %d unclassifiable, %d failed.",
		len(r.Deleted), r.Retained, len(r.Unclassifiable), len(r.Failures))
	return b.String()
}

// Sweep deletes every classifiable object under prefix created before
// now - days. Invalid input yields a *ConfigurationError and a listing
// failure a *ListingError; neither deletes anything and both return a nil
// result. Delete failures do not stop the sweep: the result is returned
// together with the error from SweepResult.Err.
func (s *Sweeper) Sweep(ctx context.Context, bucket, prefix string, days int) (*SweepResult, error) {
	if days <= 0 {
		return nil, &ConfigurationError{Field: "retention days", Value: strconv.Itoa(days), Reason: "must be greater than zero"}
	}
	if days > MaxDays {
		return nil, &ConfigurationError{Field: "retention days", Value: strconv.Itoa(days), Reason: fmt.Sprintf("must not exceed %d", MaxDays)}
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, &ConfigurationError{Field: "bucket", Value: bucket, Reason: "is required"}
	}

	listPrefix := ListPrefix(prefix)
	res := &SweepResult{
		Bucket: bucket,
		Prefix: listPrefix,
		Cutoff: Cutoff(s.now(), days),
	}

	logger := s.logger.With().Str("bucket", bucket).Str("prefix", listPrefix).Logger()
	logger.Info().
		Str("cutoff", res.Cutoff.Format("2006-01-02")).
		Int("retention_days", days).
		Msg("Retaining data where date is greater than cutoff")

	objects, err := s.store.ListObjects(ctx, bucket, listPrefix)
	if err != nil {
		return nil, &ListingError{Bucket: bucket, Prefix: listPrefix, Err: err}
	}

	expired := make([]string, 0, len(objects))
	for _, o := range objects {
		bo, ok := Classify(o.Key)
		if !ok {
			res.Unclassifiable = append(res.Unclassifiable, o.Key)
			logger.Debug().Str("key", o.Key).Msg("skipping object without a parseable timestamp")
			continue
		}
		if bo.CreatedAt.Before(res.Cutoff) {
			expired = append(expired, bo.Key)
		} else {
			res.Retained++
		}
	}

	errs := s.deleteAll(ctx, bucket, expired)
	for i, key := range expired {
		if errs[i] != nil {
			res.Failures = append(res.Failures, &DeleteError{Key: key, Err: errs[i]})
			logger.Error().Err(errs[i]).Str("key", key).Msg("failed to delete expired backup")
			continue
		}
		res.Deleted = append(res.Deleted, key)
		logger.Info().Str("key", key).Msg("The following file is beyond data retention and was deleted")
	}

	logger.Info().
		Int("deleted", len(res.Deleted)).
		Int("retained", res.Retained).
		Int("unclassifiable", len(res.Unclassifiable)).
		Int("failed", len(res.Failures)).
		Msg("retention sweep finished")

	return res, res.Err()
}

// deleteAll returns one error slot per key, in key order.
func (s *Sweeper) deleteAll(ctx context.Context, bucket string, keys []string) []error {
	errs := make([]error, len(keys))
	if s.concurrency < 2 {
		for i, key := range keys {
			errs[i] = s.store.DeleteObject(ctx, bucket, key)
		}
		return errs
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			errs[i] = s.store.DeleteObject(ctx, bucket, key)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
