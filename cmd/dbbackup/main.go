package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dev-tams/dbbackup/internal/app"
	"github.com/dev-tams/dbbackup/internal/config"
	"github.com/dev-tams/dbbackup/internal/logging"
)

func main() {
	if err := newApp(os.Stdout).Run(normalizeArgs(os.Args)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	deps := app.Deps{Stdout: stdout}

	return &cli.App{
		Name:   "dbbackup",
		Usage:  "dump a database, ship it to S3 and prune old backups",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"DBBACKUP_CONFIG"},
				Usage:   "path to config yaml (default: ./dbbackup.yaml or /etc/dbbackup/dbbackup.yaml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error (overrides log.level)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console or json (overrides log.format)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "backup",
				Usage:     "dump a database connection",
				ArgsUsage: "[filename]",
				Flags:     backupFlags(),
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}
					_, err = app.RunBackup(c.Context, deps, cfg, backupRequest(c))
					return err
				},
			},
			{
				Name:  "prune",
				Usage: "delete remote backups older than the retention window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "bucket", Usage: "bucket to sweep (default: s3.bucket)"},
					&cli.StringFlag{Name: "path-s3", Usage: "folder to sweep (default: s3.path)"},
					&cli.StringFlag{Name: "days", Usage: "retention in days (default: s3.retention_days)"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}
					_, err = app.RunPrune(c.Context, deps, cfg, app.PruneRequest{
						Bucket: c.String("bucket"),
						PathS3: c.String("path-s3"),
						Days:   c.String("days"),
					})
					return err
				},
			},
			{
				Name:  "check",
				Usage: "validate the config file and list connections",
				Action: func(c *cli.Context) error {
					cfg, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}
					for _, conn := range cfg.Connections {
						fmt.Fprintf(stdout, "%s\t%s\t%s\n", conn.Name, conn.Driver, conn.Database)
					}
					return nil
				},
			},
		},
	}
}

func backupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "database",
			Usage: "connection name from config (default: default_connection)",
		},
		&cli.StringFlag{
			Name:    "upload-s3",
			Aliases: []string{"u"},
			Usage:   "upload the dump to BUCKET; bare flag uses s3.bucket",
		},
		&cli.StringFlag{
			Name:  "path-s3",
			Usage: "folder in the bucket (default: s3.path)",
		},
		&cli.StringFlag{
			Name:  "data-retention-s3",
			Usage: "delete uploaded backups older than DAYS; bare flag uses s3.retention_days",
		},
		&cli.BoolFlag{
			Name:  "disable-slack",
			Usage: "do not send notifications",
		},
	}
}

func backupRequest(c *cli.Context) app.BackupRequest {
	return app.BackupRequest{
		Filename:      c.Args().First(),
		Database:      c.String("database"),
		Upload:        c.IsSet("upload-s3"),
		Bucket:        c.String("upload-s3"),
		PathS3:        c.String("path-s3"),
		Retention:     c.IsSet("data-retention-s3"),
		RetentionDays: c.String("data-retention-s3"),
		DisableSlack:  c.Bool("disable-slack"),
	}
}

// loadValidatedConfig also initializes logging, with the global flags taking
// precedence over the log section.
func loadValidatedConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if v := c.String("log-level"); v != "" {
		logCfg.Level = v
	}
	if v := c.String("log-format"); v != "" {
		logCfg.Format = v
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
