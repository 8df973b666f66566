package fs

import (
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Classifier decides which backend owns a logical path by matching it
// against an ordered set of glob patterns.
type Classifier struct {
	patterns []string
}

// NewClassifier creates a classifier for the given patterns. A nil or
// empty pattern set classifies nothing as excluded.
func NewClassifier(patterns []string) *Classifier {
	return &Classifier{patterns: patterns}
}

// Excluded reports whether the logical path matches any pattern.
// The path is treated as a forward-slash path rooted at "/"; the
// filesystem is never consulted. Patterns without a separator also
// match the base name, so "*.txt" excludes text files at any depth.
func (c *Classifier) Excluded(path string) bool {
	if c == nil || len(c.patterns) == 0 {
		return false
	}
	rel := strings.TrimPrefix(path, "/")
	for _, pattern := range c.patterns {
		p := strings.TrimPrefix(pattern, "/")
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, err := doublestar.Match(p, pathpkg.Base(rel)); err == nil && ok {
				return true
			}
		}
	}
	return false
}
