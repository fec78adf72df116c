package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrPathOutsideRoot is returned by Rel when a path cannot be expressed
// relative to the project root.
var ErrPathOutsideRoot = errors.New("path outside root")

// Rel rewrites path relative to root using forward slashes. Relative input
// is assumed to already be root-relative and is only cleaned, so Rel is
// idempotent.
func Rel(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrPathOutsideRoot, path, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is not under %q", ErrPathOutsideRoot, path, root)
	}

	return filepath.ToSlash(rel), nil
}

// Normalize applies Rel to every path. Paths outside root are passed
// through unchanged and reported at debug level.
func Normalize(logger *slog.Logger, root string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	out := make([]string, 0, len(paths))

	for _, p := range paths {
		rel, err := Rel(root, p)
		if err != nil {
			logger.Debug("passing path through unchanged", slog.String("path", p), slog.String("error", err.Error()))
			out = append(out, p)

			continue
		}

		out = append(out, rel)
	}

	return out
}
