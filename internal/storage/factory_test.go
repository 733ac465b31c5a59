package storage

import (
	"context"
	"testing"

	"github.com/dev-tams/dbbackup/internal/config"
)

func TestFromConfigLocal(t *testing.T) {
	st, err := FromConfig(context.Background(), config.S3Config{Backend: "local", LocalPath: t.TempDir()})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if st.Name() != "local" {
		t.Fatalf("unexpected store %q", st.Name())
	}
}

func TestFromConfigRejectsUnknownBackend(t *testing.T) {
	if _, err := FromConfig(context.Background(), config.S3Config{Backend: "ftp"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromConfig(context.Background(), config.S3Config{Backend: "local"}); err == nil {
		t.Fatal("expected error for local backend without path")
	}
}
