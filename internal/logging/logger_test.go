package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitJSONWritesStructuredFields(t *testing.T) {
	orig := log.Logger
	defer func() {
		log.Logger = orig
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	var buf bytes.Buffer
	if err := Init(Config{Level: "debug", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	log.Debug().Str("bucket", "nightly").Msg("listing")

	out := buf.String()
	if !strings.Contains(out, `"bucket":"nightly"`) || !strings.Contains(out, `"message":"listing"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestInitRejectsBadInput(t *testing.T) {
	orig := log.Logger
	defer func() { log.Logger = orig }()

	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
}
