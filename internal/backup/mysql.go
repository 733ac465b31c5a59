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

type MySQLDumper struct {
	Conn config.ConnectionConfig
}

func (MySQLDumper) FileExtension() string { return "sql" }

func (d MySQLDumper) Dump(ctx context.Context, destPath string) error {
	tool, err := lookupTool("mysqldump")
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, tool, d.args(destPath)...)
	// MYSQL_PWD keeps the password out of the process list.
	cmd.Env = os.Environ()
	if d.Conn.Password != "" {
		cmd.Env = append(cmd.Env, "MYSQL_PWD="+d.Conn.Password)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(destPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("mysqldump failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (d MySQLDumper) args(destPath string) []string {
	conn := d.Conn
	args := []string{"--host=" + conn.Host}
	if conn.Port > 0 {
		args = append(args, "--port="+strconv.Itoa(conn.Port))
	}
	if conn.User != "" {
		args = append(args, "--user="+conn.User)
	}
	return append(args,
		"--single-transaction",
		"--routines",
		"--no-tablespaces",
		"--result-file="+destPath,
		conn.Database,
	)
}
