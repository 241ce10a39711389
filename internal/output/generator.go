// Package output renders selection trees into the concatenated prompt document
// and formats the auxiliary views printed by the CLI.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

// DefaultMaxFileSize is the largest file whose content is embedded.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

const (
	// maxDefaultWorkers caps the default read concurrency.
	maxDefaultWorkers = 16
	bytesPerMegabyte  = 1024 * 1024

	directoryStructureHeader = "Directory Structure:\n\n"
	fileContentsHeader       = "\n--- File Contents ---\n\n"
	fileHeaderFormat         = "\n---\nFile: /%s\n---\n"
	noFilesSelectedMessage   = "No files selected or found based on current selection.\n"
	prePromptSeparator       = "\n\n"

	fileTooLargeFormat  = "Error: File '%s' is too large (%.2fMB). Max %dMB."
	fileReadErrorFormat = "Error reading file '%s': %v"

	debugGenerationFormat = "generated output for %d files"
)

// Generator turns the checked part of a selection tree into one document.
// It does not guard against concurrent use; callers serialize generations.
type Generator struct {
	// MaxFileSize is the size ceiling in bytes; zero selects DefaultMaxFileSize.
	MaxFileSize int64
	// Workers bounds concurrent reads; zero selects min(16, 2×GOMAXPROCS).
	Workers int
	Logger  *zap.Logger
}

// selectedFile pairs the relative listing path with the file on disk.
type selectedFile struct {
	relativePath string
	fullPath     string
}

// readResult holds either content or an inline error message.
type readResult struct {
	content   string
	errorText string
	size      int64
}

// Generate renders the document for the tree's current selection. A non-blank
// prePrompt is trimmed and placed before the listing. Per-file read failures
// are embedded as text; only context cancellation aborts generation.
func (generator *Generator) Generate(ctx context.Context, tree *selection.Tree, prePrompt string) (types.GenerationResult, error) {
	var builder strings.Builder
	trimmedPrePrompt := strings.TrimSpace(prePrompt)
	if trimmedPrePrompt != utils.EmptyString {
		builder.WriteString(trimmedPrePrompt + prePromptSeparator)
	}

	files := collectSelectedFiles(tree)
	if len(files) == 0 {
		builder.WriteString(noFilesSelectedMessage)
		return types.GenerationResult{Text: builder.String()}, nil
	}

	relativePaths := make([]string, len(files))
	for index, file := range files {
		relativePaths[index] = file.relativePath
	}

	results, readError := generator.readAll(ctx, files)
	if readError != nil {
		return types.GenerationResult{}, readError
	}

	builder.WriteString(directoryStructureHeader)
	builder.WriteString(RenderDirectoryStructure(relativePaths))
	builder.WriteString(fileContentsHeader)

	result := types.GenerationResult{Files: len(files)}
	for index, file := range files {
		builder.WriteString(fmt.Sprintf(fileHeaderFormat, file.relativePath))
		if results[index].errorText != utils.EmptyString {
			builder.WriteString(results[index].errorText)
			result.Failures++
		} else {
			builder.WriteString(results[index].content)
			result.Bytes += results[index].size
		}
		builder.WriteString(lineBreak)
	}
	result.Text = builder.String()

	utils.LoggerOrNop(generator.Logger).Debug(fmt.Sprintf(debugGenerationFormat, result.Files))
	return result, nil
}

// collectSelectedFiles walks the tree and returns the selected files sorted by
// relative path, ignoring case. Checked directories contribute every
// descendant file, indeterminate directories contribute their checked subset.
func collectSelectedFiles(tree *selection.Tree) []selectedFile {
	if tree == nil {
		return nil
	}
	filesByKey := make(map[string]selectedFile)
	var collect func(node *selection.Node, includeAll bool)
	collect = func(node *selection.Node, includeAll bool) {
		if !node.IsDirectory() {
			if includeAll || node.State() == selection.Checked {
				relativePath := tree.RelativePath(node)
				key := strings.ToUpper(relativePath)
				if _, exists := filesByKey[key]; !exists {
					filesByKey[key] = selectedFile{relativePath: relativePath, fullPath: node.FullPath()}
				}
			}
			return
		}
		switch {
		case includeAll || node.State() == selection.Checked:
			for _, child := range node.Children() {
				collect(child, true)
			}
		case node.State() == selection.Indeterminate:
			for _, child := range node.Children() {
				collect(child, false)
			}
		}
	}
	collect(tree.Root(), false)

	relativePaths := make([]string, 0, len(filesByKey))
	for _, file := range filesByKey {
		relativePaths = append(relativePaths, file.relativePath)
	}
	utils.SortFolded(relativePaths)

	files := make([]selectedFile, len(relativePaths))
	for index, relativePath := range relativePaths {
		files[index] = filesByKey[strings.ToUpper(relativePath)]
	}
	return files
}

// SelectedRelativePaths lists the relative paths Generate would embed.
func SelectedRelativePaths(tree *selection.Tree) []string {
	files := collectSelectedFiles(tree)
	relativePaths := make([]string, len(files))
	for index, file := range files {
		relativePaths[index] = file.relativePath
	}
	return relativePaths
}

// readAll reads every file with bounded concurrency. Results are indexed by
// the position of the file in files.
func (generator *Generator) readAll(ctx context.Context, files []selectedFile) ([]readResult, error) {
	results := make([]readResult, len(files))
	maxFileSize := generator.maxFileSize()

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(generator.workerCount())
	for index := range files {
		fileIndex := index
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			results[fileIndex] = readSelectedFile(files[fileIndex].fullPath, maxFileSize)
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return results, nil
}

func (generator *Generator) maxFileSize() int64 {
	if generator.MaxFileSize > 0 {
		return generator.MaxFileSize
	}
	return DefaultMaxFileSize
}

func (generator *Generator) workerCount() int {
	if generator.Workers > 0 {
		return generator.Workers
	}
	return DefaultWorkerCount()
}

// DefaultWorkerCount returns min(16, 2×GOMAXPROCS), at least one.
func DefaultWorkerCount() int {
	workers := 2 * runtime.GOMAXPROCS(0)
	if workers > maxDefaultWorkers {
		workers = maxDefaultWorkers
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func readSelectedFile(fullPath string, maxFileSize int64) readResult {
	baseName := filepath.Base(fullPath)
	fileHandle, openError := os.Open(fullPath)
	if openError != nil {
		return readResult{errorText: fmt.Sprintf(fileReadErrorFormat, baseName, openError)}
	}
	defer fileHandle.Close()

	fileInfo, statError := fileHandle.Stat()
	if statError != nil {
		return readResult{errorText: fmt.Sprintf(fileReadErrorFormat, baseName, statError)}
	}
	if fileInfo.Size() > maxFileSize {
		return readResult{errorText: tooLargeMessage(baseName, fileInfo.Size(), maxFileSize)}
	}

	// the file may grow between stat and read
	content, readError := io.ReadAll(io.LimitReader(fileHandle, maxFileSize+1))
	if readError != nil {
		return readResult{errorText: fmt.Sprintf(fileReadErrorFormat, baseName, readError)}
	}
	if int64(len(content)) > maxFileSize {
		return readResult{errorText: tooLargeMessage(baseName, int64(len(content)), maxFileSize)}
	}
	return readResult{content: string(utils.StripByteOrderMark(content)), size: int64(len(content))}
}

func tooLargeMessage(baseName string, size int64, maxFileSize int64) string {
	return fmt.Sprintf(fileTooLargeFormat, baseName, float64(size)/bytesPerMegabyte, maxFileSize/bytesPerMegabyte)
}
