package backup

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/dev-tams/dbbackup/internal/config"
)

// Dumper writes a point-in-time export of one database to a local file.
type Dumper interface {
	Dump(ctx context.Context, destPath string) error
	// FileExtension is the extension, without dot, of files Dump writes.
	FileExtension() string
}

var execLookPath = exec.LookPath

// ForConnection picks the dumper for conn.Driver.
func ForConnection(conn config.ConnectionConfig) (Dumper, error) {
	switch conn.Driver {
	case "mysql":
		return MySQLDumper{Conn: conn}, nil
	case "postgres", "pgsql":
		return PostgresDumper{Conn: conn}, nil
	case "sqlite":
		return SQLiteDumper{Path: conn.Database}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s {db: %s}", conn.Driver, conn.Name)
	}
}

func lookupTool(name string) (string, error) {
	p, err := execLookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return p, nil
}
