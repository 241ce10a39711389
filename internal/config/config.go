// Package config loads YAML defaults and per-project exclusion pattern files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/repotxt/internal/utils"
)

const commentPrefix = "#"

// LoadIgnoreFilePatterns reads an ignore file and returns its patterns.
// A missing file yields no patterns and no error.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", ignoreFilePath, closeError)
		}
	}()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return utils.DeduplicatePatterns(ignorePatterns), nil
}

// LoadCombinedPatterns returns the user exclusion patterns for a root directory:
// configured and flag patterns first, then the root's ignore file when useIgnoreFile is set.
func LoadCombinedPatterns(absoluteDirectoryPath string, exclusionPatterns []string, useIgnoreFile bool) ([]string, error) {
	var combinedPatterns []string
	for _, pattern := range exclusionPatterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		combinedPatterns = append(combinedPatterns, trimmedPattern)
	}

	if useIgnoreFile {
		ignoreFilePath := filepath.Join(absoluteDirectoryPath, utils.IgnoreFileName)
		ignoreFilePatterns, loadError := LoadIgnoreFilePatterns(ignoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", utils.IgnoreFileName, absoluteDirectoryPath, loadError)
		}
		combinedPatterns = append(combinedPatterns, ignoreFilePatterns...)
	}

	return utils.DeduplicatePatterns(combinedPatterns), nil
}
