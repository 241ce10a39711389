// Package session owns one selection tree and serializes every operation on
// it. An operation requested while another one runs is rejected with ErrBusy.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/commands"
	"github.com/temirov/repotxt/internal/exclusion"
	"github.com/temirov/repotxt/internal/output"
	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/tokenizer"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

var (
	// ErrBusy is returned when an operation is already running.
	ErrBusy = errors.New("session is busy")
	// ErrNoFolder is returned by operations that need a loaded folder.
	ErrNoFolder = errors.New("no folder selected")
	// ErrNodeNotFound is returned when a toggled path is not part of the tree.
	ErrNodeNotFound = errors.New("node not found")
)

const (
	errorSelectFolderFormat = "selecting folder %s: %w"
	errorRefreshFormat      = "refreshing %s: %w"
	errorToggleFormat       = "toggling %s: %w"
	errorGenerateFormat     = "generating output: %w"

	infoFolderLoadedFormat = "loaded %s (%d extensions)"
)

// Options configures a Session.
type Options struct {
	// PresetEnabled turns on the web preset and hard directory excludes.
	PresetEnabled bool
	// UserPatterns are exclusion patterns applied on top of the preset.
	UserPatterns []string
	// Generator renders documents; the zero value uses defaults.
	Generator output.Generator
	// Estimator counts tokens; nil loads the tiktoken encodings on first use.
	Estimator *tokenizer.Estimator
	Logger    *zap.Logger
}

// Session is the single owner of a selection tree.
type Session struct {
	busy          sync.Mutex
	presetEnabled bool
	userPatterns  []string
	matcher       *exclusion.Matcher
	generator     output.Generator
	estimator     *tokenizer.Estimator
	estimatorOnce sync.Once
	logger        *zap.Logger
	tree          *selection.Tree
}

// New constructs a Session.
func New(options Options) *Session {
	logger := utils.LoggerOrNop(options.Logger)
	generator := options.Generator
	if generator.Logger == nil {
		generator.Logger = logger
	}
	session := &Session{
		presetEnabled: options.PresetEnabled,
		userPatterns:  append([]string(nil), options.UserPatterns...),
		generator:     generator,
		estimator:     options.Estimator,
		logger:        logger,
	}
	session.matcher = exclusion.NewMatcher(exclusion.ActivePatterns(session.presetEnabled, session.userPatterns))
	return session
}

func (session *Session) acquire() error {
	if !session.busy.TryLock() {
		return ErrBusy
	}
	return nil
}

func (session *Session) release() {
	session.busy.Unlock()
}

// Locked is the view of a session handed to Do. Its methods run without
// taking the busy lock because Do already holds it; it must not escape the
// function it was passed to.
type Locked struct {
	session *Session
}

// Do runs operation while holding the busy lock, so several steps and the
// reads of their results form one critical section. It returns ErrBusy
// without running operation when another operation is in progress.
func (session *Session) Do(operation func(locked *Locked) error) error {
	if err := session.acquire(); err != nil {
		return err
	}
	defer session.release()
	return operation(&Locked{session: session})
}

// View runs read with the current tree under the busy lock. It fails with
// ErrNoFolder before a folder is selected.
func (session *Session) View(read func(tree *selection.Tree) error) error {
	return session.Do(func(locked *Locked) error {
		tree := locked.Tree()
		if tree == nil {
			return ErrNoFolder
		}
		return read(tree)
	})
}

func (session *Session) builder() commands.TreeBuilder {
	return commands.TreeBuilder{
		HardExclude: session.presetEnabled,
		Matcher:     session.matcher,
		Logger:      session.logger,
	}
}

// SelectFolder replaces the tree with a fresh load of path. On failure the
// previous tree is kept.
func (session *Session) SelectFolder(ctx context.Context, path string) (tree *selection.Tree, err error) {
	err = session.Do(func(locked *Locked) error {
		tree, err = locked.SelectFolder(ctx, path)
		return err
	})
	return tree, err
}

// SelectFolder is Session.SelectFolder under a held lock.
func (locked *Locked) SelectFolder(ctx context.Context, path string) (*selection.Tree, error) {
	session := locked.session
	builder := session.builder()
	tree, buildError := builder.Build(ctx, path, nil)
	if buildError != nil {
		return nil, fmt.Errorf(errorSelectFolderFormat, path, buildError)
	}
	session.tree = tree
	session.logger.Debug(fmt.Sprintf(infoFolderLoadedFormat, tree.RootPath(), len(tree.Extensions())))
	return tree, nil
}

// Refresh rebuilds the tree from disk, keeping the checked files that still exist.
func (session *Session) Refresh(ctx context.Context) (tree *selection.Tree, err error) {
	err = session.Do(func(locked *Locked) error {
		tree, err = locked.Refresh(ctx)
		return err
	})
	return tree, err
}

// Refresh is Session.Refresh under a held lock.
func (locked *Locked) Refresh(ctx context.Context) (*selection.Tree, error) {
	session := locked.session
	if session.tree == nil {
		return nil, ErrNoFolder
	}
	builder := session.builder()
	rootPath := session.tree.RootPath()
	tree, buildError := builder.Build(ctx, rootPath, session.tree.CheckedFilePaths())
	if buildError != nil {
		return nil, fmt.Errorf(errorRefreshFormat, rootPath, buildError)
	}
	session.tree = tree
	return tree, nil
}

// ToggleNode sets the state of the node at path, absolute or relative to the
// root, propagating to descendants and ancestors.
func (session *Session) ToggleNode(path string, state selection.CheckState) error {
	return session.Do(func(locked *Locked) error {
		return locked.ToggleNode(path, state)
	})
}

// ToggleNode is Session.ToggleNode under a held lock.
func (locked *Locked) ToggleNode(path string, state selection.CheckState) error {
	tree := locked.session.tree
	if tree == nil {
		return ErrNoFolder
	}
	node, found := tree.Find(path)
	if !found {
		return fmt.Errorf(errorToggleFormat, path, ErrNodeNotFound)
	}
	tree.Toggle(node, state)
	return nil
}

// ToggleExtensionFilter checks or unchecks every file with extension and
// returns how many files changed.
func (session *Session) ToggleExtensionFilter(extension string, checked bool) (changed int, err error) {
	err = session.Do(func(locked *Locked) error {
		changed, err = locked.ToggleExtensionFilter(extension, checked)
		return err
	})
	return changed, err
}

// ToggleExtensionFilter is Session.ToggleExtensionFilter under a held lock.
func (locked *Locked) ToggleExtensionFilter(extension string, checked bool) (int, error) {
	tree := locked.session.tree
	if tree == nil {
		return 0, ErrNoFolder
	}
	return tree.ApplyExtensionFilter(utils.NormalizeExtension(extension), checked), nil
}

// GenerateOutput renders the document for the current selection.
func (session *Session) GenerateOutput(ctx context.Context, prePrompt string) (result types.GenerationResult, err error) {
	err = session.Do(func(locked *Locked) error {
		result, err = locked.GenerateOutput(ctx, prePrompt)
		return err
	})
	return result, err
}

// GenerateOutput is Session.GenerateOutput under a held lock.
func (locked *Locked) GenerateOutput(ctx context.Context, prePrompt string) (types.GenerationResult, error) {
	session := locked.session
	if session.tree == nil {
		return types.GenerationResult{}, ErrNoFolder
	}
	result, generateError := session.generator.Generate(ctx, session.tree, prePrompt)
	if generateError != nil {
		return types.GenerationResult{}, fmt.Errorf(errorGenerateFormat, generateError)
	}
	return result, nil
}

// EstimateTokens counts the tokens of text for model. It does not take the
// busy lock and never fails.
func (session *Session) EstimateTokens(text string, model string) types.TokenEstimate {
	session.estimatorOnce.Do(func() {
		if session.estimator == nil {
			session.estimator = tokenizer.NewEstimator(session.logger, nil)
		}
	})
	return session.estimator.Count(text, model)
}

// SetExclusionPreset toggles the web preset, rebuilds the matcher and
// refreshes a loaded tree.
func (session *Session) SetExclusionPreset(ctx context.Context, enabled bool) error {
	return session.Do(func(locked *Locked) error {
		return locked.SetExclusionPreset(ctx, enabled)
	})
}

// SetExclusionPreset is Session.SetExclusionPreset under a held lock.
func (locked *Locked) SetExclusionPreset(ctx context.Context, enabled bool) error {
	session := locked.session
	session.presetEnabled = enabled
	session.matcher = exclusion.NewMatcher(exclusion.ActivePatterns(enabled, session.userPatterns))
	if session.tree == nil {
		return nil
	}
	_, refreshError := locked.Refresh(ctx)
	return refreshError
}

// Tree returns the current tree, nil before a folder is selected.
func (locked *Locked) Tree() *selection.Tree {
	return locked.session.tree
}

// Tree returns the current tree, nil before a folder is selected. It does not
// take the busy lock: callers that share the session across goroutines read
// the tree through View or Do instead.
func (session *Session) Tree() *selection.Tree {
	return session.tree
}

// Extensions returns the extensions detected in the current tree. Like Tree,
// it is for single-goroutine callers.
func (session *Session) Extensions() []string {
	if session.tree == nil {
		return nil
	}
	return session.tree.Extensions()
}
