package notify

import (
	"fmt"
	"strings"
)

// Text is the headline every notifier sends for event.
func Text(event Event) string {
	var b strings.Builder
	if event.Status == StatusFailure {
		fmt.Fprintf(&b, "A backup of the %s at %s has failed: %s", event.Database, event.Host, event.Error)
	} else {
		fmt.Fprintf(&b, "A backup of the %s at %s has been created.", event.Database, event.Host)
	}
	if s := event.Sweep; s != nil {
		fmt.Fprintf(&b, " Data retention: %d deleted, %d retained, %d failed.", s.Deleted, s.Retained, s.Failed)
	}
	if event.Status != StatusFailure && event.Error != "" {
		fmt.Fprintf(&b, " Warning: %s", event.Error)
	}
	return b.String()
}

// Details renders the event as "key: value" lines, skipping empty values.
func Details(event Event) string {
	fields := [][2]string{
		{"connection", event.Connection},
		{"database", event.Database},
		{"host", event.Host},
		{"status", event.Status},
		{"file", event.File},
		{"dest", event.Dest},
		{"duration", event.Duration},
	}
	if s := event.Sweep; s != nil {
		fields = append(fields,
			[2]string{"retention deleted", fmt.Sprint(s.Deleted)},
			[2]string{"retention retained", fmt.Sprint(s.Retained)},
			[2]string{"retention unclassifiable", fmt.Sprint(s.Unclassifiable)},
			[2]string{"retention failed", fmt.Sprint(s.Failed)},
		)
	}
	fields = append(fields, [2]string{"error", event.Error})

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		lines = append(lines, f[0]+": "+f[1])
	}
	return strings.Join(lines, "\n")
}
