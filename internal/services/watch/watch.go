// Package watch regenerates a session's document whenever files under its
// root change. Bursts of filesystem events are debounced into one refresh and
// one generation.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/services/session"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

// DefaultDebounce is the quiet period awaited after the last event.
const DefaultDebounce = 500 * time.Millisecond

const (
	errorCreateWatcherFormat = "creating filesystem watcher: %w"
	errorUpdatesNil          = "watch: updates channel is nil"

	warningWatchDirectoryFormat = "Warning: unable to watch %s"
	warningWatcherErrorMessage  = "Warning: filesystem watcher error"
	debugCycleFormat            = "change detected, regenerating (%s)"
)

// Update is the outcome of one regeneration cycle.
type Update struct {
	Result types.GenerationResult
	Err    error
}

// Options configures a Watcher.
type Options struct {
	Debounce  time.Duration
	PrePrompt string
	// IgnorePaths lists absolute paths whose events never trigger a cycle,
	// such as the file the document is written to.
	IgnorePaths []string
	Logger      *zap.Logger
}

// Watcher ties a session to filesystem notifications.
type Watcher struct {
	session *session.Session
	options Options
	logger  *zap.Logger
	ignored map[string]struct{}
	watched map[string]struct{}
}

// New constructs a Watcher for a session that already has a folder loaded.
func New(owner *session.Session, options Options) *Watcher {
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	ignored := make(map[string]struct{}, len(options.IgnorePaths))
	for _, path := range options.IgnorePaths {
		if absolutePath, absoluteError := filepath.Abs(path); absoluteError == nil {
			ignored[absolutePath] = struct{}{}
		}
	}
	return &Watcher{
		session: owner,
		options: options,
		logger:  utils.LoggerOrNop(options.Logger),
		ignored: ignored,
		watched: make(map[string]struct{}),
	}
}

// Run watches every directory of the session tree until ctx is done, sending
// one Update per debounced change burst. It returns nil on cancellation.
func (watcher *Watcher) Run(ctx context.Context, updates chan<- Update) error {
	if updates == nil {
		return errors.New(errorUpdatesNil)
	}
	if watcher.session.Tree() == nil {
		return session.ErrNoFolder
	}
	notifier, notifierError := fsnotify.NewWatcher()
	if notifierError != nil {
		return fmt.Errorf(errorCreateWatcherFormat, notifierError)
	}
	defer notifier.Close()
	watcher.syncDirectories(notifier, watcher.session.Tree())

	var debounceTimer *time.Timer
	var debounceChannel <-chan time.Time
	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(watcher.options.Debounce)
		} else {
			debounceTimer.Reset(watcher.options.Debounce)
		}
		debounceChannel = debounceTimer.C
	}
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, open := <-notifier.Events:
			if !open {
				return nil
			}
			if watcher.isRelevant(event) {
				watcher.logger.Debug(fmt.Sprintf(debugCycleFormat, event.Name))
				schedule()
			}
		case watchError, open := <-notifier.Errors:
			if !open {
				return nil
			}
			watcher.logger.Warn(warningWatcherErrorMessage, zap.Error(watchError))
		case <-debounceChannel:
			debounceChannel = nil
			update, retry := watcher.cycle(ctx, notifier)
			if retry {
				schedule()
				continue
			}
			if sendError := send(ctx, updates, update); sendError != nil {
				return nil
			}
		}
	}
}

// cycle refreshes the tree and regenerates the document. A busy session asks
// for another attempt after the next quiet period.
func (watcher *Watcher) cycle(ctx context.Context, notifier *fsnotify.Watcher) (Update, bool) {
	tree, refreshError := watcher.session.Refresh(ctx)
	if errors.Is(refreshError, session.ErrBusy) {
		return Update{}, true
	}
	if refreshError != nil {
		return Update{Err: refreshError}, false
	}
	watcher.syncDirectories(notifier, tree)

	result, generateError := watcher.session.GenerateOutput(ctx, watcher.options.PrePrompt)
	if errors.Is(generateError, session.ErrBusy) {
		return Update{}, true
	}
	return Update{Result: result, Err: generateError}, false
}

func (watcher *Watcher) isRelevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if _, ignored := watcher.ignored[filepath.Clean(event.Name)]; ignored {
		return false
	}
	return true
}

// syncDirectories registers every directory of tree and forgets directories
// that disappeared.
func (watcher *Watcher) syncDirectories(notifier *fsnotify.Watcher, tree *selection.Tree) {
	current := make(map[string]struct{})
	tree.Walk(func(node *selection.Node) bool {
		if !node.IsDirectory() {
			return true
		}
		current[node.FullPath()] = struct{}{}
		if _, alreadyWatched := watcher.watched[node.FullPath()]; alreadyWatched {
			return true
		}
		if addError := notifier.Add(node.FullPath()); addError != nil {
			watcher.logger.Warn(fmt.Sprintf(warningWatchDirectoryFormat, node.FullPath()), zap.Error(addError))
			return true
		}
		watcher.watched[node.FullPath()] = struct{}{}
		return true
	})
	for path := range watcher.watched {
		if _, stillPresent := current[path]; !stillPresent {
			_ = notifier.Remove(path)
			delete(watcher.watched, path)
		}
	}
}

func send(ctx context.Context, updates chan<- Update, update Update) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case updates <- update:
		return nil
	}
}
