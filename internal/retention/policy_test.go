package retention

import (
	"errors"
	"testing"
	"time"
)

func TestParseDays(t *testing.T) {
	got, err := ParseDays(" 30 ")
	if err != nil || got != 30 {
		t.Fatalf("ParseDays(30) = %d, %v", got, err)
	}

	if got, err := ParseDays("36500"); err != nil || got != MaxDays {
		t.Fatalf("ParseDays(36500) = %d, %v", got, err)
	}

	for _, raw := range []string{"", "0", "-3", "abc", "1.5", "7days", "36501", "200000000000000"} {
		_, err := ParseDays(raw)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("ParseDays(%q): expected ConfigurationError, got %v", raw, err)
		}
	}
}

func TestCutoffTruncatesToSeconds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 999, time.FixedZone("X", 3600))
	got := Cutoff(now, 1)
	want := time.Date(2026, 2, 28, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("Cutoff = %s, want %s", got, want)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		key  string
		ok   bool
		unix int64
	}{
		{"databases/mysql_1700000000.sql", true, 1700000000},
		{"databases/my_app_db_1700000000.sql.gz", true, 1700000000},
		{"app_42.dump", true, 42},
		{"databases/weird-name.sql", false, 0},
		{"databases/app_1700000000", false, 0},
		{"databases/app_1700000000.", false, 0},
		{"databases/app_.sql", false, 0},
		{"databases/app_17e9.sql", false, 0},
		{"databases/app_-5.sql", false, 0},
		{"databases/_1700000000.sql", false, 0},
		{"databases/app_99999999999999999999.sql", false, 0},
		{"databases/", false, 0},
		{"", false, 0},
	}

	for _, tc := range cases {
		obj, ok := Classify(tc.key)
		if ok != tc.ok {
			t.Fatalf("Classify(%q) ok=%v, want %v", tc.key, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if obj.CreatedAt.Unix() != tc.unix || obj.Key != tc.key {
			t.Fatalf("Classify(%q) = %+v", tc.key, obj)
		}
	}
}

func TestListPrefix(t *testing.T) {
	cases := map[string]string{
		"":            "",
		"/":           "",
		"databases":   "databases/",
		"/databases/": "databases/",
		"a/b":         "a/b/",
	}
	for in, want := range cases {
		if got := ListPrefix(in); got != want {
			t.Fatalf("ListPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
