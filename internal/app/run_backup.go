package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dev-tams/dbbackup/internal/backup"
	"github.com/dev-tams/dbbackup/internal/compression"
	"github.com/dev-tams/dbbackup/internal/config"
	"github.com/dev-tams/dbbackup/internal/notify"
	"github.com/dev-tams/dbbackup/internal/retention"
	"github.com/dev-tams/dbbackup/internal/storage"
)

const notificationTimeout = 30 * time.Second

// Deps are the collaborators of a run. Zero fields use the real
// implementations.
type Deps struct {
	OpenStore func(ctx context.Context, cfg config.S3Config) (storage.ObjectStore, error)
	NewDumper func(conn config.ConnectionConfig) (backup.Dumper, error)
	Now       func() time.Time
	Getwd     func() (string, error)
	Stdout    io.Writer
}

func (d Deps) withDefaults() Deps {
	if d.OpenStore == nil {
		d.OpenStore = storage.FromConfig
	}
	if d.NewDumper == nil {
		d.NewDumper = backup.ForConnection
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Getwd == nil {
		d.Getwd = os.Getwd
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
	return d
}

// BackupRequest carries the backup command line. Upload and Retention record
// whether the flags were given at all; an empty Bucket or RetentionDays then
// falls back to s3.bucket and s3.retention_days.
type BackupRequest struct {
	Filename      string
	Database      string
	Upload        bool
	Bucket        string
	PathS3        string
	Retention     bool
	RetentionDays string
	DisableSlack  bool
}

type BackupReport struct {
	RunID      string
	Connection string
	Path       string
	FileName   string
	Bucket     string
	Key        string
	Uploaded   bool
	Sweep      *retention.SweepResult
	SweepErr   error
	NotifyErr  error
	Duration   time.Duration
}

type remoteTarget struct {
	bucket string
	prefix string
	days   int
}

// RunBackup dumps one connection to a local file and optionally uploads it,
// sweeps expired remote backups and sends notifications.
func RunBackup(ctx context.Context, deps Deps, cfg *config.Config, req BackupRequest) (*BackupReport, error) {
	deps = deps.withDefaults()

	conn, err := cfg.Connection(req.Database)
	if err != nil {
		return nil, err
	}

	report := &BackupReport{RunID: uuid.NewString(), Connection: conn.Name}
	logger := log.With().Str("run_id", report.RunID).Str("db", conn.Name).Logger()

	target, err := resolveRemote(cfg, req)
	if err != nil {
		return report, err
	}

	dumper, err := deps.NewDumper(*conn)
	if err != nil {
		return report, err
	}

	var dispatcher *notify.Dispatcher
	if !req.DisableSlack {
		dispatcher, err = buildDispatcher(cfg, *conn)
		if err != nil {
			return report, err
		}
	}

	started := deps.Now()
	if err := os.MkdirAll(cfg.DumpsPath, 0o755); err != nil {
		return report, fmt.Errorf("create dumps folder: %w", err)
	}

	report.Path, report.FileName, err = dumpPath(deps, cfg.DumpsPath, conn.Name, dumper.FileExtension(), req.Filename, started)
	if err != nil {
		return report, err
	}

	logger.Info().Str("path", report.Path).Str("driver", conn.Driver).Msg("starting database dump")
	if err := dumper.Dump(ctx, report.Path); err != nil {
		fmt.Fprintf(deps.Stdout, "Database backup failed. %s\n", err)
		logger.Error().Err(err).Msg("Database backup failed.")
		report.Duration = deps.Now().Sub(started)
		report.NotifyErr = notifyResult(ctx, dispatcher, *conn, report, err, logger)
		return report, fmt.Errorf("backup %s: %w", conn.Name, err)
	}

	if conn.Compress {
		gz, err := compression.GzipFile(report.Path)
		if err != nil {
			report.Duration = deps.Now().Sub(started)
			report.NotifyErr = notifyResult(ctx, dispatcher, *conn, report, err, logger)
			return report, fmt.Errorf("compress dump: %w", err)
		}
		report.Path = gz
		report.FileName += ".gz"
	}

	if req.Filename != "" {
		fmt.Fprintf(deps.Stdout, "Database backup was successful. Saved to %s\n", report.Path)
	} else {
		fmt.Fprintf(deps.Stdout, "Database backup was successful. %s was saved in the dumps folder.\n", report.FileName)
	}

	if target != nil {
		report.Bucket = target.bucket
		report.Key = objectKey(target.prefix, report.FileName)

		st, err := deps.OpenStore(ctx, cfg.S3)
		if err == nil {
			err = st.PutObject(ctx, target.bucket, report.Key, report.Path)
		}
		if err != nil {
			err = fmt.Errorf("upload %s to %s: %w", report.FileName, target.bucket, err)
			logger.Error().Err(err).Str("bucket", target.bucket).Msg("upload failed")
			report.Duration = deps.Now().Sub(started)
			report.NotifyErr = notifyResult(ctx, dispatcher, *conn, report, err, logger)
			return report, err
		}
		report.Uploaded = true
		fmt.Fprintln(deps.Stdout, "Upload complete.")
		logger.Info().Str("bucket", target.bucket).Str("key", report.Key).Msg("upload complete")

		if target.days > 0 {
			report.Sweep, report.SweepErr = runSweep(ctx, deps, st, cfg.S3, target, logger)
		}
	}

	report.Duration = deps.Now().Sub(started)
	report.NotifyErr = notifyResult(ctx, dispatcher, *conn, report, nil, logger)

	fmt.Fprintf(deps.Stdout, "backup OK: db=%s dest=%s duration=%s\n", conn.Name, destination(report), report.Duration.Round(time.Millisecond))

	return report, report.SweepErr
}

// resolveRemote returns nil when no upload was requested. Retention is only
// honored together with an upload.
func resolveRemote(cfg *config.Config, req BackupRequest) (*remoteTarget, error) {
	if !req.Upload {
		if req.Retention {
			log.Warn().Msg("data retention requires --upload-s3, skipping sweep")
		}
		return nil, nil
	}

	t := &remoteTarget{
		bucket: strings.TrimSpace(req.Bucket),
		prefix: strings.TrimSpace(req.PathS3),
	}
	if t.bucket == "" {
		t.bucket = cfg.S3.Bucket
	}
	if t.bucket == "" {
		return nil, errors.New("no S3 bucket given and s3.bucket is not set")
	}
	if t.prefix == "" {
		t.prefix = cfg.S3.Path
	}
	if t.prefix == "" {
		t.prefix = config.DefaultRemotePath
	}

	if req.Retention {
		days, err := resolveRetentionDays(req.RetentionDays, cfg.S3.RetentionDays)
		if err != nil {
			return nil, err
		}
		t.days = days
	}
	return t, nil
}

// dumpPath returns the local dump path and the name used for the remote
// object. An absolute filename is used as given. A relative one is placed
// under the working directory and gets a timestamp suffix on the remote
// side only.
func dumpPath(deps Deps, dumpsPath, connection, ext, filename string, now time.Time) (string, string, error) {
	unix := strconv.FormatInt(now.Unix(), 10)

	switch {
	case filename == "":
		name := connection + "_" + unix + "." + ext
		return filepath.Join(dumpsPath, name), name, nil
	case filepath.IsAbs(filename):
		return filename, filepath.Base(filename), nil
	default:
		cwd, err := deps.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("resolve working directory: %w", err)
		}
		p := filepath.Join(cwd, filename)
		return p, filepath.Base(p) + "_" + unix, nil
	}
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func destination(r *BackupReport) string {
	if r.Uploaded {
		return "s3://" + r.Bucket + "/" + r.Key
	}
	return r.Path
}

func buildDispatcher(cfg *config.Config, conn config.ConnectionConfig) (*notify.Dispatcher, error) {
	opts := notify.SlackOptionsFromConfig(cfg.Notify)
	d, err := notify.NewDispatcher(cfg.Notifications, opts)
	if err != nil {
		return nil, err
	}
	if conn.Slack.Enabled() {
		u, err := notify.SlackWebhookURL(conn.Slack)
		if err != nil {
			return nil, fmt.Errorf("connection %s slack: %w", conn.Name, err)
		}
		n, err := notify.NewSlack(u, opts)
		if err != nil {
			return nil, fmt.Errorf("connection %s slack: %w", conn.Name, err)
		}
		d.Add(n, true, true)
	}
	return d, nil
}

// notifyResult sends the outcome and returns the delivery error. A failed
// sweep after a good backup is reported as a warning on a success event.
// Delivery problems are logged but never fail the backup.
func notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, conn config.ConnectionConfig, r *BackupReport, runErr error, logger zerolog.Logger) error {
	if dispatcher.Len() == 0 {
		return nil
	}

	event := notify.Event{
		Connection: conn.Name,
		Database:   conn.Database,
		Host:       conn.Host,
		Status:     notify.StatusSuccess,
		File:       r.FileName,
		Dest:       destination(r),
		Duration:   r.Duration.Round(time.Millisecond).String(),
	}
	if event.Host == "" {
		event.Host = "localhost"
	}
	if runErr != nil {
		event.Status = notify.StatusFailure
		event.Error = runErr.Error()
	} else if r.SweepErr != nil {
		event.Error = r.SweepErr.Error()
	}
	if s := r.Sweep; s != nil {
		event.Sweep = &notify.SweepCounts{
			Deleted:        s.DeletedCount(),
			Retained:       s.Retained,
			Unclassifiable: s.UnclassifiableCount(),
			Failed:         s.FailedCount(),
		}
	}

	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil {
		logger.Error().Err(err).Str("status", event.Status).Msg("notification failed")
		return err
	}
	return nil
}

func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
