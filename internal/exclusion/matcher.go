// Package exclusion decides which directories and files stay out of a
// selection tree. Patterns are compiled into exact directory names, exact
// file names and an ordered list of wildcard patterns.
package exclusion

import (
	"strings"

	"github.com/temirov/repotxt/internal/utils"
)

const (
	wildcardAny       = "*"
	wildcardSingle    = "?"
	pathSeparator     = "/"
	extensionMarker   = "."
	extensionWildcard = "*."
	prefixWildcard    = ".*"
)

// Matcher holds the compiled indexes of an exclusion pattern list.
// All comparisons are case-insensitive. A Matcher is immutable once built.
type Matcher struct {
	patterns         []string
	exactDirNames    map[string]struct{}
	exactFileNames   map[string]struct{}
	wildcardPatterns []string
}

// NewMatcher compiles patterns. Blank entries are ignored and backslashes are
// treated as forward slashes.
func NewMatcher(patterns []string) *Matcher {
	matcher := &Matcher{
		exactDirNames:  make(map[string]struct{}),
		exactFileNames: make(map[string]struct{}),
	}
	for _, rawPattern := range patterns {
		pattern := strings.TrimSpace(utils.NormalizeSeparators(rawPattern))
		if pattern == utils.EmptyString {
			continue
		}
		matcher.patterns = append(matcher.patterns, pattern)
		folded := strings.ToLower(pattern)
		matcher.wildcardPatterns = append(matcher.wildcardPatterns, folded)

		if strings.ContainsAny(pattern, wildcardAny+wildcardSingle+pathSeparator) {
			continue
		}
		matcher.exactDirNames[folded] = struct{}{}
		if strings.Contains(pattern, extensionMarker) {
			matcher.exactFileNames[folded] = struct{}{}
		}
	}
	return matcher
}

// Patterns returns the normalized patterns the matcher was built from.
func (matcher *Matcher) Patterns() []string {
	return append([]string(nil), matcher.patterns...)
}

// IsEmpty reports whether the matcher holds no patterns.
func (matcher *Matcher) IsEmpty() bool {
	return matcher == nil || len(matcher.wildcardPatterns) == 0
}

// IsDirExcluded reports whether name is listed as an excluded directory.
func (matcher *Matcher) IsDirExcluded(name string) bool {
	if matcher.IsEmpty() {
		return false
	}
	_, excluded := matcher.exactDirNames[strings.ToLower(name)]
	return excluded
}

// IsFileExcluded reports whether name is listed as an excluded file.
func (matcher *Matcher) IsFileExcluded(name string) bool {
	if matcher.IsEmpty() {
		return false
	}
	_, excluded := matcher.exactFileNames[strings.ToLower(name)]
	return excluded
}

// MatchesAny reports whether candidate matches at least one wildcard pattern.
// Path-style patterns (containing "/") are only tried when isFullPath is set.
func (matcher *Matcher) MatchesAny(candidate string, isFullPath bool) bool {
	if matcher.IsEmpty() || candidate == utils.EmptyString {
		return false
	}
	folded := strings.ToLower(utils.NormalizeSeparators(candidate))
	for _, pattern := range matcher.wildcardPatterns {
		if matchPattern(folded, pattern, isFullPath) {
			return true
		}
	}
	return false
}

// IsPathExcluded combines the exact indexes with wildcard matching on both the
// entry name and its path relative to the tree root.
func (matcher *Matcher) IsPathExcluded(name, relativePath string, isDirectory bool) bool {
	if matcher.IsEmpty() {
		return false
	}
	if isDirectory && matcher.IsDirExcluded(name) {
		return true
	}
	if !isDirectory && matcher.IsFileExcluded(name) {
		return true
	}
	return matcher.MatchesAny(name, false) || matcher.MatchesAny(relativePath, true)
}

func matchPattern(candidate, pattern string, isFullPath bool) bool {
	if candidate == pattern {
		return true
	}

	if strings.HasPrefix(pattern, extensionWildcard) {
		if strings.HasSuffix(candidate, pattern[1:]) {
			return true
		}
	}

	if strings.HasSuffix(pattern, prefixWildcard) {
		prefix := strings.TrimSuffix(pattern, prefixWildcard)
		if strings.HasPrefix(candidate, prefix) && strings.Contains(candidate[len(prefix):], extensionMarker) {
			return true
		}
	}

	startsWithWildcard := strings.HasPrefix(pattern, wildcardAny)
	endsWithWildcard := strings.HasSuffix(pattern, wildcardAny)

	if endsWithWildcard && !startsWithWildcard {
		if strings.HasPrefix(candidate, strings.TrimSuffix(pattern, wildcardAny)) {
			return true
		}
	}

	if startsWithWildcard && !endsWithWildcard {
		if strings.HasSuffix(candidate, strings.TrimPrefix(pattern, wildcardAny)) {
			return true
		}
	}

	if startsWithWildcard && endsWithWildcard && len(pattern) > 2 {
		if strings.Contains(candidate, pattern[1:len(pattern)-1]) {
			return true
		}
	}

	return isFullPath && strings.Contains(pattern, pathSeparator) && strings.Contains(candidate, pattern)
}
