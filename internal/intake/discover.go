package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover expands a doublestar pattern ("docs/**/*.md") into the regular
// files it matches, skipping sidecars, hidden entries and extensions
// outside allowed. Paths are returned sorted.
func Discover(pattern string, allowed []string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", pattern, err)
	}
	out := matches[:0]
	for _, m := range matches {
		if Eligible(m, allowed) {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Eligible reports whether path should be ingested.
func Eligible(path string, allowed []string) bool {
	if strings.HasSuffix(path, SidecarSuffix) || hidden(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, ext) })
}

func hidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

// SidecarOwner maps a sidecar path back to the document it describes.
func SidecarOwner(path string) (string, bool) {
	if !strings.HasSuffix(path, SidecarSuffix) {
		return "", false
	}
	doc := strings.TrimSuffix(path, SidecarSuffix)
	if _, err := os.Stat(doc); err != nil {
		return "", false
	}
	return doc, true
}
