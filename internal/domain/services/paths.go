// Package services implements domain business logic and use cases.
package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LookupFunc resolves an environment variable (os.LookupEnv in production)
type LookupFunc func(key string) (string, bool)

// ExpandPath expands a leading ~, $VAR and ${VAR} and returns a clean absolute path.
// $HOME always resolves to home so tests need no environment.
func ExpandPath(raw, home string, lookup LookupFunc) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty path")
	}

	if s == "~" || strings.HasPrefix(s, "~/") {
		if home == "" {
			return "", fmt.Errorf("cannot expand %q: home directory unknown", raw)
		}
		s = home + s[1:]
	}

	var missing []string
	s = os.Expand(s, func(key string) string {
		if key == "HOME" && home != "" {
			return home
		}
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v
			}
		}
		missing = append(missing, key)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable %s in %q", strings.Join(missing, ", "), raw)
	}

	if !filepath.IsAbs(s) {
		return "", fmt.Errorf("path %q is not absolute", raw)
	}

	return filepath.Clean(s), nil
}

// IsWithin reports whether child is strictly below parent
func IsWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// IsUnsafePath reports whether locking path would take away the filesystem root,
// the home directory or one of its ancestors, or touch a protected path: equal
// to it, containing it or inside it
func IsUnsafePath(path, home string, protected ...string) bool {
	clean := filepath.Clean(path)
	if filepath.Dir(clean) == clean {
		return true
	}

	for _, p := range protected {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if clean == p || IsWithin(p, clean) || IsWithin(clean, p) {
			return true
		}
	}

	if home == "" {
		return false
	}

	home = filepath.Clean(home)
	return clean == home || IsWithin(home, clean)
}
