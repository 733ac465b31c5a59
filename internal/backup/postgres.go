package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dev-tams/dbbackup/internal/config"
)

type PostgresDumper struct {
	Conn config.ConnectionConfig
}

func (PostgresDumper) FileExtension() string { return "dump" }

// Dump writes a pg_dump custom-format archive to destPath.
func (d PostgresDumper) Dump(ctx context.Context, destPath string) error {
	tool, err := lookupTool("pg_dump")
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, tool, d.args(destPath)...)
	// pg_dump reads the password from the environment variable if provided.
	cmd.Env = os.Environ()
	if d.Conn.Password != "" {
		cmd.Env = append(cmd.Env, "PGPASSWORD="+d.Conn.Password)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(destPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pg_dump failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (d PostgresDumper) args(destPath string) []string {
	conn := d.Conn
	args := []string{"--host", conn.Host}
	if conn.Port > 0 {
		args = append(args, "--port", strconv.Itoa(conn.Port))
	}
	if conn.User != "" {
		args = append(args, "--username", conn.User)
	}
	return append(args,
		"--dbname", conn.Database,
		"--format=custom",
		"--no-password",
		"--file", destPath,
	)
}
