package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandString substitutes ${VAR}, ${VAR:-default}, and $VAR
// placeholders from the process environment. Unlike the teacher's
// equivalent (which silently substitutes an empty string for an
// unset variable), a placeholder with no default that resolves to
// empty is reported as an error — spec.md §6 makes that fatal at
// config load, never silently accepted.
func expandString(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var missing []string

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		name, def := parts[1], parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.braced.FindStringSubmatch(match)[1]
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.simple.FindStringSubmatch(match)[1]
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	})

	if len(missing) > 0 {
		return s, fmt.Errorf("unresolved or empty environment variable(s): %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// expandEnvVarsInData walks a decoded JSON tree (the shapes
// encoding/json produces: map[string]any, []any, string, and scalars)
// substituting placeholders in every string it finds. It stops at the
// first unresolved placeholder, since a partially-substituted config
// is not safe to proceed with.
func expandEnvVarsInData(data any) (any, error) {
	switch v := data.(type) {
	case string:
		return expandString(v)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			expanded, err := expandEnvVarsInData(value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			result[key] = expanded
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			expanded, err := expandEnvVarsInData(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = expanded
		}
		return result, nil

	default:
		return v, nil
	}
}
