package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "modernc.org/sqlite"
)

// SQLiteDumper snapshots a database file with VACUUM INTO, which gives a
// consistent copy while other connections keep writing.
type SQLiteDumper struct {
	Path string
}

func (SQLiteDumper) FileExtension() string { return "sqlite" }

func (d SQLiteDumper) Dump(ctx context.Context, destPath string) error {
	if _, err := os.Stat(d.Path); err != nil {
		return fmt.Errorf("sqlite database: %w", err)
	}
	// VACUUM INTO refuses to overwrite
	if err := os.Remove(destPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove existing dump: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+d.Path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("sqlite vacuum into: %w", err)
	}
	return nil
}
