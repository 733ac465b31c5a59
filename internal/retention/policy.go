package retention

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// MaxDays bounds the retention window. Larger values would overflow the
// cutoff date arithmetic.
const MaxDays = 36500

// ParseDays parses a retention window given on the command line.
func ParseDays(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	days, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ConfigurationError{Field: "data-retention-s3", Value: raw, Reason: "must be a number of days"}
	}
	if days <= 0 {
		return 0, &ConfigurationError{Field: "data-retention-s3", Value: raw, Reason: "must be greater than zero"}
	}
	if days > MaxDays {
		return 0, &ConfigurationError{Field: "data-retention-s3", Value: raw, Reason: fmt.Sprintf("must not exceed %d", MaxDays)}
	}
	return days, nil
}

// Cutoff is now minus days, in UTC at second granularity. Objects created
// strictly before it are expired.
func Cutoff(now time.Time, days int) time.Time {
	return now.UTC().Truncate(time.Second).AddDate(0, 0, -days)
}

// BackupObject is a remote entry whose name carries its creation time.
type BackupObject struct {
	Key       string
	Name      string
	CreatedAt time.Time
}

// Classify recovers the creation time from a key shaped like
// <dir>/<identifier>_<unixSeconds>.<ext>. The timestamp is the run of digits
// after the last underscore up to the first dot, so identifiers may contain
// underscores themselves.
func Classify(key string) (BackupObject, bool) {
	if key == "" || strings.HasSuffix(key, "/") {
		return BackupObject{}, false
	}
	name := path.Base(key)

	us := strings.LastIndexByte(name, '_')
	if us <= 0 {
		return BackupObject{}, false
	}
	rest := name[us+1:]

	dot := strings.IndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return BackupObject{}, false
	}
	digits := rest[:dot]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return BackupObject{}, false
		}
	}

	sec, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return BackupObject{}, false
	}

	return BackupObject{
		Key:       key,
		Name:      name,
		CreatedAt: time.Unix(sec, 0).UTC(),
	}, true
}

// ListPrefix turns a configured remote path into a listing prefix that only
// matches keys inside that folder.
func ListPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
