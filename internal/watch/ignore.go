// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidatePatterns rejects malformed doublestar globs up front so matching
// can ignore errors later.
func ValidatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// ignored reports whether path, an absolute path under root, matches an
// ignore pattern. The root itself is never ignored.
func (e *Engine) ignored(path string) bool {
	if len(e.opts.ignore) == 0 || path == e.root {
		return false
	}
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range e.opts.ignore {
		if matched, _ := doublestar.Match(pat, rel); matched {
			return true
		}
	}
	return false
}
