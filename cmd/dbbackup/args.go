package main

import "strings"

// Flags whose value is optional on the command line.
var optionalValueFlags = map[string]string{
	"--upload-s3":         "--upload-s3",
	"-u":                  "--upload-s3",
	"--data-retention-s3": "--data-retention-s3",
}

// normalizeArgs rewrites an optional-value flag given without a value into
// the explicit empty form, so the flag parser does not take the next
// argument as its value. A following argument that does not start with "-"
// is still used as the value.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		name, ok := optionalValueFlags[a]
		if !ok {
			out = append(out, a)
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, name+"="+args[i+1])
			i++
			continue
		}
		out = append(out, name+"=")
	}
	return out
}
