package utils

import (
	"errors"
	"runtime/debug"

	"github.com/go-git/go-git/v5"
)

const (
	unknownVersion      = "unknown"
	develVersion        = "(devel)"
	shortRevisionLength = 7
	dirtySuffix         = "-dirty"
)

// GetApplicationVersion reports the module version from build info, falling back
// to the HEAD revision of an enclosing git repository.
func GetApplicationVersion() string {
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}

	revision, revisionError := repositoryRevision(".")
	if revisionError != nil {
		return unknownVersion
	}
	return revision
}

// repositoryRevision locates the repository enclosing startDirectory and
// returns its abbreviated HEAD hash, marked dirty when the worktree has changes.
func repositoryRevision(startDirectory string) (string, error) {
	repository, openError := git.PlainOpenWithOptions(startDirectory, &git.PlainOpenOptions{DetectDotGit: true})
	if openError != nil {
		return "", openError
	}
	head, headError := repository.Head()
	if headError != nil {
		return "", headError
	}
	revision := head.Hash().String()
	if len(revision) < shortRevisionLength {
		return "", errors.New("unexpected revision length")
	}
	revision = revision[:shortRevisionLength]

	worktree, worktreeError := repository.Worktree()
	if worktreeError != nil {
		return revision, nil
	}
	status, statusError := worktree.Status()
	if statusError == nil && !status.IsClean() {
		revision += dirtySuffix
	}
	return revision, nil
}
