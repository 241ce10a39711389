// Package commands contains the filesystem walk that materializes selection trees.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/exclusion"
	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/utils"
)

const (
	// warningSkipSubdirFormat is used when a subdirectory cannot be enumerated.
	warningSkipSubdirFormat = "Warning: skipping unreadable directory %s"
	// warningStatPathFormat is used when file information cannot be retrieved.
	warningStatPathFormat = "Warning: unable to stat %s"

	// errorAbsolutePathFormat is used when the absolute path cannot be determined.
	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	// errorStatRootFormat is used when the root cannot be inspected.
	errorStatRootFormat = "inspecting root %s: %w"
	// errorRootNotDirectoryFormat is used when the root is a file.
	errorRootNotDirectoryFormat = "%s is not a directory"
	// errorBuildTreeFormat is used when building the tree is aborted.
	errorBuildTreeFormat = "building tree for %s: %w"
)

// ErrRootNotDirectory is returned when the requested root is not a directory.
var ErrRootNotDirectory = errors.New("root is not a directory")

// buildState carries per-build accumulators.
type buildState struct {
	rootPath   string
	restore    selection.RestoreSet
	extensions map[string]struct{}
}

// Build walks rootPath and returns its selection tree. A nil restore set
// performs a fresh load: files start checked unless the matcher excludes them
// and directories derive their state afterwards. A non-nil restore set checks
// exactly the files it contains. Unreadable entries are logged and skipped.
func (treeBuilder *TreeBuilder) Build(ctx context.Context, rootPath string, restore selection.RestoreSet) (*selection.Tree, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	rootInfo, statError := os.Stat(absoluteRootPath)
	if statError != nil {
		return nil, fmt.Errorf(errorStatRootFormat, absoluteRootPath, statError)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf(errorRootNotDirectoryFormat+": %w", absoluteRootPath, ErrRootNotDirectory)
	}

	state := &buildState{
		rootPath:   absoluteRootPath,
		restore:    restore,
		extensions: make(map[string]struct{}),
	}
	rootNode := selection.NewNode(filepath.Base(absoluteRootPath), absoluteRootPath, true, selection.Checked)
	if buildError := treeBuilder.buildChildren(ctx, state, rootNode, false); buildError != nil {
		return nil, fmt.Errorf(errorBuildTreeFormat, absoluteRootPath, buildError)
	}

	extensions := make([]string, 0, len(state.extensions))
	for extension := range state.extensions {
		extensions = append(extensions, extension)
	}
	tree := selection.NewTree(rootNode, extensions)
	if restore != nil {
		tree.RestoreSelection(restore)
	} else {
		tree.RecalculateAll()
	}
	return tree, nil
}

// buildChildren enumerates one directory level, recursing into subdirectories
// before attaching the sorted children to parent.
func (treeBuilder *TreeBuilder) buildChildren(ctx context.Context, state *buildState, parent *selection.Node, insideExcluded bool) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}
	logger := utils.LoggerOrNop(treeBuilder.Logger)

	directoryEntries, readDirectoryError := os.ReadDir(parent.FullPath())
	if readDirectoryError != nil {
		logger.Warn(fmt.Sprintf(warningSkipSubdirFormat, parent.FullPath()), zap.Error(readDirectoryError))
	}

	var children []*selection.Node
	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		entryPath := filepath.Join(parent.FullPath(), entryName)

		isDirectory, isRegular, resolveError := resolveEntryType(directoryEntry, entryPath)
		if resolveError != nil {
			logger.Warn(fmt.Sprintf(warningStatPathFormat, entryPath), zap.Error(resolveError))
			continue
		}
		relativePath := utils.RelativePathOrSelf(entryPath, state.rootPath)

		if isDirectory {
			if treeBuilder.HardExclude && exclusion.IsHardExcludedDirectory(entryName) {
				continue
			}
			directoryNode := selection.NewNode(entryName, entryPath, true, selection.Checked)
			directoryExcluded := insideExcluded || treeBuilder.Matcher.IsPathExcluded(entryName, relativePath, true)
			if buildError := treeBuilder.buildChildren(ctx, state, directoryNode, directoryExcluded); buildError != nil {
				return buildError
			}
			if directoryExcluded && len(directoryNode.Children()) == 0 {
				directoryNode.SetChecked(selection.Unchecked, false, false)
			}
			children = append(children, directoryNode)
			continue
		}
		if !isRegular {
			continue
		}

		state.extensions[utils.FileExtension(entryName)] = struct{}{}
		initialState := selection.Unchecked
		if state.restore == nil {
			excluded := insideExcluded || treeBuilder.Matcher.IsPathExcluded(entryName, relativePath, false)
			initialState = selection.StateFromBool(!excluded)
		}
		children = append(children, selection.NewNode(entryName, entryPath, false, initialState))
	}

	parent.SetChildren(children)
	return nil
}

// resolveEntryType classifies an entry. Symbolic links are resolved; links to
// directories are reported as neither directory nor regular file so that the
// walk never follows them.
func resolveEntryType(directoryEntry fs.DirEntry, entryPath string) (isDirectory bool, isRegular bool, err error) {
	entryType := directoryEntry.Type()
	if entryType&fs.ModeSymlink == 0 {
		return entryType.IsDir(), entryType.IsRegular(), nil
	}
	targetInfo, statError := os.Stat(entryPath)
	if statError != nil {
		return false, false, statError
	}
	return false, targetInfo.Mode().IsRegular(), nil
}
