// Package utils contains general helper functions used across repotxt.
package utils

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	pathSegmentSeparator = "/"
	extensionSeparator   = "."
)

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// RelativePathOrSelf calculates the forward-slash relative path from root to fullPath.
// Returns the cleaned fullPath if relative calculation fails.
// Returns "." if fullPath and root resolve to the same directory.
func RelativePathOrSelf(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	absoluteRoot, err := filepath.Abs(root)
	if err != nil {
		return cleanPath
	}
	cleanAbsoluteRoot := filepath.Clean(absoluteRoot)

	if cleanPath == cleanAbsoluteRoot {
		return "."
	}

	relativePath, relErr := filepath.Rel(cleanAbsoluteRoot, cleanPath)
	if relErr != nil {
		return cleanPath
	}
	return filepath.ToSlash(relativePath)
}

// NormalizeSeparators rewrites backslashes as forward slashes.
func NormalizeSeparators(path string) string {
	return strings.ReplaceAll(path, "\\", pathSegmentSeparator)
}

// FileExtension returns the lower-cased extension of name without its leading dot.
// Names without an extension yield an empty string.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), extensionSeparator))
}

// NormalizeExtension converts user input such as "*.GO", ".go" or "go" to "go".
// A lone "." denotes files without an extension.
func NormalizeExtension(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == extensionSeparator {
		return EmptyString
	}
	trimmed = strings.TrimPrefix(trimmed, "*")
	trimmed = strings.TrimPrefix(trimmed, extensionSeparator)
	return strings.ToLower(trimmed)
}

// FoldedLess orders two strings ignoring case, falling back to ordinal order on ties.
func FoldedLess(left, right string) bool {
	foldedLeft := strings.ToUpper(left)
	foldedRight := strings.ToUpper(right)
	if foldedLeft != foldedRight {
		return foldedLeft < foldedRight
	}
	return left < right
}

// SortFolded sorts values in place using FoldedLess.
func SortFolded(values []string) {
	sort.SliceStable(values, func(leftIndex, rightIndex int) bool {
		return FoldedLess(values[leftIndex], values[rightIndex])
	})
}
