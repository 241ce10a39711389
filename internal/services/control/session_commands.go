package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/temirov/repotxt/internal/commands"
	"github.com/temirov/repotxt/internal/output"
	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/services/gitdiff"
	"github.com/temirov/repotxt/internal/services/session"
	"github.com/temirov/repotxt/internal/types"
)

// Command names served for a session.
const (
	CommandSelectFolder    = "select-folder"
	CommandRefresh         = "refresh"
	CommandToggleNode      = "toggle-node"
	CommandToggleExtension = "toggle-extension"
	CommandSetPreset       = "set-preset"
	CommandTree            = "tree"
	CommandExtensions      = "extensions"
	CommandGenerate        = "generate"
	CommandEstimateTokens  = "estimate-tokens"
	CommandBranches        = "branches"

	errorInvalidStateFormat = "invalid state %q: use checked, unchecked or indeterminate"
	errorInvalidDiffFormat  = "invalid diff mode %q"
	errorMissingPath        = "path is required"
)

type pathPayload struct {
	Path string `json:"path"`
}

type toggleNodePayload struct {
	Path  string `json:"path"`
	State string `json:"state"`
}

type toggleExtensionPayload struct {
	Extension string `json:"extension"`
	Checked   bool   `json:"checked"`
}

type presetPayload struct {
	Enabled bool `json:"enabled"`
}

type generatePayload struct {
	PrePrompt string `json:"prePrompt"`
	Model     string `json:"model"`
	Diff      string `json:"diff"`
	DiffFrom  string `json:"diffFrom"`
	DiffTo    string `json:"diffTo"`
}

type estimatePayload struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// GenerationReport is the structured part of a generate response.
type GenerationReport struct {
	Files    int                 `json:"files"`
	Bytes    int64               `json:"bytes"`
	Failures int                 `json:"failures"`
	Summary  string              `json:"summary"`
	Tokens   types.TokenEstimate `json:"tokens"`
}

// ExtensionToggleReport is the structured part of a toggle-extension response.
type ExtensionToggleReport struct {
	Changed int `json:"changed"`
}

// SessionCapabilities lists the commands SessionExecutors serves.
func SessionCapabilities() []Capability {
	return []Capability{
		{Name: CommandSelectFolder, Description: "load a folder into the session"},
		{Name: CommandRefresh, Description: "rebuild the tree keeping checked files"},
		{Name: CommandToggleNode, Description: "set the state of a file or directory"},
		{Name: CommandToggleExtension, Description: "check or uncheck every file with an extension"},
		{Name: CommandSetPreset, Description: "turn the web exclusion preset on or off"},
		{Name: CommandTree, Description: "return the selection tree"},
		{Name: CommandExtensions, Description: "list detected extensions"},
		{Name: CommandGenerate, Description: "produce the document for the current selection"},
		{Name: CommandEstimateTokens, Description: "estimate tokens of a text"},
		{Name: CommandBranches, Description: "list local branches of the folder's repository"},
	}
}

// SessionExecutors binds every session command to owner. Each command runs
// inside one critical section of the session, so the tree it answers with is
// the tree its own change produced.
func SessionExecutors(owner *session.Session) map[string]CommandExecutor {
	return map[string]CommandExecutor{
		CommandSelectFolder: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload pathPayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			if payload.Path == "" {
				return CommandResponse{}, NewCommandExecutionError(http.StatusBadRequest, errors.New(errorMissingPath))
			}
			return lockedTreeResponse(owner, func(locked *session.Locked) error {
				_, err := locked.SelectFolder(ctx, payload.Path)
				return err
			})
		}),
		CommandRefresh: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			return lockedTreeResponse(owner, func(locked *session.Locked) error {
				_, err := locked.Refresh(ctx)
				return err
			})
		}),
		CommandToggleNode: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload toggleNodePayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			state, known := selection.ParseCheckState(payload.State)
			if !known {
				return CommandResponse{}, NewCommandExecutionError(http.StatusBadRequest, fmt.Errorf(errorInvalidStateFormat, payload.State))
			}
			return lockedTreeResponse(owner, func(locked *session.Locked) error {
				return locked.ToggleNode(payload.Path, state)
			})
		}),
		CommandToggleExtension: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload toggleExtensionPayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			changed, err := owner.ToggleExtensionFilter(payload.Extension, payload.Checked)
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			return jsonResponse(ExtensionToggleReport{Changed: changed})
		}),
		CommandSetPreset: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload presetPayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			var response CommandResponse
			err := owner.Do(func(locked *session.Locked) error {
				if err := locked.SetExclusionPreset(ctx, payload.Enabled); err != nil {
					return err
				}
				if locked.Tree() == nil {
					response = CommandResponse{Format: types.FormatRaw}
					return nil
				}
				var encodeError error
				response, encodeError = treeResponse(locked.Tree())
				return encodeError
			})
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			return response, nil
		}),
		CommandTree: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var response CommandResponse
			err := owner.View(func(tree *selection.Tree) error {
				var encodeError error
				response, encodeError = treeResponse(tree)
				return encodeError
			})
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			return response, nil
		}),
		CommandExtensions: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var extensions []string
			err := owner.View(func(tree *selection.Tree) error {
				extensions = tree.Extensions()
				return nil
			})
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			return jsonResponse(extensions)
		}),
		CommandGenerate: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload generatePayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			mode, known := types.ParseDiffMode(payload.Diff)
			if !known {
				return CommandResponse{}, NewCommandExecutionError(http.StatusBadRequest, fmt.Errorf(errorInvalidDiffFormat, payload.Diff))
			}
			var result types.GenerationResult
			var rootPath string
			err := owner.Do(func(locked *session.Locked) error {
				var generateError error
				result, generateError = locked.GenerateOutput(ctx, payload.PrePrompt)
				if generateError != nil {
					return generateError
				}
				rootPath = locked.Tree().RootPath()
				return nil
			})
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			text := result.Text
			var warnings []string
			if mode != types.DiffModeNone {
				diffText, diffError := diffForRoot(rootPath, mode, payload.DiffFrom, payload.DiffTo)
				if diffError != nil {
					warnings = append(warnings, diffError.Error())
				} else {
					text = output.AppendDiffSection(text, diffText)
				}
			}
			report := GenerationReport{
				Files:    result.Files,
				Bytes:    result.Bytes,
				Failures: result.Failures,
				Summary:  output.FormatSummaryLine(output.SummarizeGeneration(result)),
				Tokens:   owner.EstimateTokens(text, payload.Model),
			}
			response, err := jsonResponse(report)
			response.Output = text
			response.Warnings = warnings
			return response, err
		}),
		CommandEstimateTokens: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var payload estimatePayload
			if err := request.Decode(&payload); err != nil {
				return CommandResponse{}, err
			}
			return jsonResponse(owner.EstimateTokens(payload.Text, payload.Model))
		}),
		CommandBranches: CommandExecutorFunc(func(ctx context.Context, request CommandRequest) (CommandResponse, error) {
			var rootPath string
			err := owner.View(func(tree *selection.Tree) error {
				rootPath = tree.RootPath()
				return nil
			})
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			repository, err := gitdiff.Open(rootPath)
			if err != nil {
				return CommandResponse{}, classify(err)
			}
			branches, err := repository.Branches()
			if err != nil {
				return CommandResponse{}, err
			}
			return jsonResponse(branches)
		}),
	}
}

func diffForRoot(rootPath string, mode types.DiffMode, from string, to string) (string, error) {
	repository, err := gitdiff.Open(rootPath)
	if err != nil {
		return "", err
	}
	return repository.Diff(mode, from, to)
}

// lockedTreeResponse runs change and renders the resulting tree in the same
// critical section.
func lockedTreeResponse(owner *session.Session, change func(locked *session.Locked) error) (CommandResponse, error) {
	var response CommandResponse
	err := owner.Do(func(locked *session.Locked) error {
		if err := change(locked); err != nil {
			return err
		}
		var encodeError error
		response, encodeError = treeResponse(locked.Tree())
		return encodeError
	})
	if err != nil {
		return CommandResponse{}, classify(err)
	}
	return response, nil
}

func treeResponse(tree *selection.Tree) (CommandResponse, error) {
	return jsonResponse(output.BuildTreeOutput(tree, tree.Root()))
}

func jsonResponse(value interface{}) (CommandResponse, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return CommandResponse{}, err
	}
	return CommandResponse{Format: types.FormatJSON, Result: encoded}, nil
}

// classify attaches an HTTP status to session and repository errors.
func classify(err error) error {
	switch {
	case errors.Is(err, session.ErrBusy):
		return NewCommandExecutionError(http.StatusConflict, err)
	case errors.Is(err, session.ErrNoFolder):
		return NewCommandExecutionError(http.StatusPreconditionFailed, err)
	case errors.Is(err, session.ErrNodeNotFound):
		return NewCommandExecutionError(http.StatusNotFound, err)
	case errors.Is(err, commands.ErrRootNotDirectory), errors.Is(err, os.ErrNotExist):
		return NewCommandExecutionError(http.StatusBadRequest, err)
	case errors.Is(err, gitdiff.ErrNotRepository):
		return NewCommandExecutionError(http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
