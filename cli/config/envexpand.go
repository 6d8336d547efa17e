// Package config handles YAML config file loading for covered run.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ExpandEnv replaces environment references in input:
//   - ${VAR} expands to the value, or "" if unset
//   - ${VAR:-default} expands to the value, or default if unset or empty
//   - ${VAR:?message} expands to the value, or fails with message if unset
//     or empty
//
// Secrets for the adapter (webhook URL, auth headers) are typically marked
// required so a CI job without them fails before a browser is contacted.
// Every missing required variable is reported, not only the first.
func ExpandEnv(input string) (string, error) {
	var missing []error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]

		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		switch op {
		case "-":
			return arg
		case "?":
			if arg == "" {
				arg = "not set"
			}
			missing = append(missing, fmt.Errorf("required environment variable %s: %s", name, arg))
		}
		return ""
	})
	if len(missing) > 0 {
		return "", errors.Join(missing...)
	}
	return out, nil
}
