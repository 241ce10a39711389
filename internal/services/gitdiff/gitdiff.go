// Package gitdiff produces diff text for the repository enclosing a folder:
// pending working tree changes, two branch tips or two commits.
package gitdiff

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

// NoDifferencesMessage is returned when the compared states are identical.
const NoDifferencesMessage = "No differences found."

var (
	// ErrNotRepository is returned when no repository encloses the folder.
	ErrNotRepository = errors.New("not a git repository")
	// ErrMissingRevision is returned when a comparison lacks one of its sides.
	ErrMissingRevision = errors.New("two revisions are required")
	// ErrUnknownMode is returned for unsupported diff modes.
	ErrUnknownMode = errors.New("unknown diff mode")
)

const (
	errorOpenRepositoryFormat = "opening repository at %s: %w"
	errorResolveBranchFormat  = "resolving branch %s: %w"
	errorResolveCommitFormat  = "resolving commit %s: %w"
	errorPatchFormat          = "computing patch %s..%s: %w"
	errorStatusFormat         = "reading worktree status: %w"
	errorHeadFormat           = "resolving HEAD: %w"
	errorModeFormat           = "%w: %q"
)

// Service reads diffs from one repository.
type Service struct {
	repository *git.Repository
}

// IsRepository reports whether path is inside a git repository.
func IsRepository(path string) bool {
	_, openError := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return openError == nil
}

// Open locates the repository enclosing path.
func Open(path string) (*Service, error) {
	repository, openError := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(openError, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf(errorOpenRepositoryFormat, path, ErrNotRepository)
	}
	if openError != nil {
		return nil, fmt.Errorf(errorOpenRepositoryFormat, path, openError)
	}
	return &Service{repository: repository}, nil
}

// Branches lists local branch names in sorted order.
func (service *Service) Branches() ([]string, error) {
	iterator, branchesError := service.repository.Branches()
	if branchesError != nil {
		return nil, branchesError
	}
	var names []string
	iterateError := iterator.ForEach(func(reference *plumbing.Reference) error {
		names = append(names, reference.Name().Short())
		return nil
	})
	if iterateError != nil {
		return nil, iterateError
	}
	sort.Strings(names)
	return names, nil
}

// Diff renders the changes selected by mode. Branch and commit modes compare
// from against to.
func (service *Service) Diff(mode types.DiffMode, from string, to string) (string, error) {
	switch mode {
	case types.DiffModePending:
		return service.pendingDiff()
	case types.DiffModeBranches:
		if from == utils.EmptyString || to == utils.EmptyString {
			return utils.EmptyString, ErrMissingRevision
		}
		fromCommit, fromError := service.branchCommit(from)
		if fromError != nil {
			return utils.EmptyString, fromError
		}
		toCommit, toError := service.branchCommit(to)
		if toError != nil {
			return utils.EmptyString, toError
		}
		return commitPatch(fromCommit, toCommit, from, to)
	case types.DiffModeCommits:
		if from == utils.EmptyString || to == utils.EmptyString {
			return utils.EmptyString, ErrMissingRevision
		}
		fromCommit, fromError := service.revisionCommit(from)
		if fromError != nil {
			return utils.EmptyString, fromError
		}
		toCommit, toError := service.revisionCommit(to)
		if toError != nil {
			return utils.EmptyString, toError
		}
		return commitPatch(fromCommit, toCommit, from, to)
	default:
		return utils.EmptyString, fmt.Errorf(errorModeFormat, ErrUnknownMode, mode)
	}
}

func (service *Service) branchCommit(name string) (*object.Commit, error) {
	reference, referenceError := service.repository.Reference(plumbing.NewBranchReferenceName(name), true)
	if referenceError != nil {
		return nil, fmt.Errorf(errorResolveBranchFormat, name, referenceError)
	}
	commit, commitError := service.repository.CommitObject(reference.Hash())
	if commitError != nil {
		return nil, fmt.Errorf(errorResolveBranchFormat, name, commitError)
	}
	return commit, nil
}

func (service *Service) revisionCommit(revision string) (*object.Commit, error) {
	hash, resolveError := service.repository.ResolveRevision(plumbing.Revision(revision))
	if resolveError != nil {
		return nil, fmt.Errorf(errorResolveCommitFormat, revision, resolveError)
	}
	commit, commitError := service.repository.CommitObject(*hash)
	if commitError != nil {
		return nil, fmt.Errorf(errorResolveCommitFormat, revision, commitError)
	}
	return commit, nil
}

func commitPatch(fromCommit *object.Commit, toCommit *object.Commit, from string, to string) (string, error) {
	patch, patchError := fromCommit.Patch(toCommit)
	if patchError != nil {
		return utils.EmptyString, fmt.Errorf(errorPatchFormat, from, to, patchError)
	}
	if len(patch.FilePatches()) == 0 {
		return NoDifferencesMessage, nil
	}
	return patch.String(), nil
}

// pendingDiff compares HEAD with the working tree for tracked files, staged or not.
func (service *Service) pendingDiff() (string, error) {
	worktree, worktreeError := service.repository.Worktree()
	if worktreeError != nil {
		return utils.EmptyString, fmt.Errorf(errorStatusFormat, worktreeError)
	}
	status, statusError := worktree.Status()
	if statusError != nil {
		return utils.EmptyString, fmt.Errorf(errorStatusFormat, statusError)
	}

	var headTree *object.Tree
	head, headError := service.repository.Head()
	switch {
	case headError == nil:
		headCommit, commitError := service.repository.CommitObject(head.Hash())
		if commitError != nil {
			return utils.EmptyString, fmt.Errorf(errorHeadFormat, commitError)
		}
		headTree, headError = headCommit.Tree()
		if headError != nil {
			return utils.EmptyString, fmt.Errorf(errorHeadFormat, headError)
		}
	case errors.Is(headError, plumbing.ErrReferenceNotFound):
		// unborn branch: everything tracked is new
	default:
		return utils.EmptyString, fmt.Errorf(errorHeadFormat, headError)
	}

	var changedPaths []string
	for path, fileStatus := range status {
		if fileStatus.Worktree == git.Untracked && fileStatus.Staging == git.Untracked {
			continue
		}
		if fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified {
			continue
		}
		changedPaths = append(changedPaths, path)
	}
	sort.Strings(changedPaths)

	rootDirectory := worktree.Filesystem.Root()
	var builder strings.Builder
	for _, path := range changedPaths {
		before := headContent(headTree, path)
		after := workingContent(rootDirectory, path)
		if before == after {
			continue
		}
		builder.WriteString(renderFileDiff(path, before, after))
	}
	if builder.Len() == 0 {
		return NoDifferencesMessage, nil
	}
	return builder.String(), nil
}

func headContent(headTree *object.Tree, path string) string {
	if headTree == nil {
		return utils.EmptyString
	}
	file, fileError := headTree.File(path)
	if fileError != nil {
		return utils.EmptyString
	}
	contents, contentsError := file.Contents()
	if contentsError != nil {
		return utils.EmptyString
	}
	return contents
}

func workingContent(rootDirectory string, path string) string {
	data, readError := os.ReadFile(filepath.Join(rootDirectory, filepath.FromSlash(path)))
	if readError != nil {
		return utils.EmptyString
	}
	return string(data)
}
