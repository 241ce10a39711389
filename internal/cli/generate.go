package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repotxt/internal/config"
	"github.com/temirov/repotxt/internal/output"
	"github.com/temirov/repotxt/internal/selection"
	"github.com/temirov/repotxt/internal/services/gitdiff"
	"github.com/temirov/repotxt/internal/services/session"
	"github.com/temirov/repotxt/internal/services/watch"
	"github.com/temirov/repotxt/internal/tokenizer"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

const (
	presetFlagName        = "preset"
	exclusionFlagName     = "exclude"
	exclusionShorthand    = "e"
	noIgnoreFlagName      = "no-ignore"
	deselectFlagName      = "deselect"
	selectFlagName        = "select"
	extensionOffFlagName  = "ext-off"
	extensionOnFlagName   = "ext-on"
	promptFlagName        = "prompt"
	promptFileFlagName    = "prompt-file"
	modelFlagName         = "model"
	copyFlagName          = "copy"
	outputFlagName        = "output"
	diffFlagName          = "diff"
	diffFromFlagName      = "diff-from"
	diffToFlagName        = "diff-to"
	debounceFlagName      = "debounce"
	diffFlagDefaultOption = string(types.DiffModePending)

	presetFlagDescription       = "apply the web project exclusion preset and skip heavy directories"
	exclusionFlagDescription    = "exclude path pattern (repeatable)"
	noIgnoreFlagDescription     = "do not read patterns from the folder's ignore file"
	deselectFlagDescription     = "uncheck a path relative to the folder (repeatable)"
	selectFlagDescription       = "check a path relative to the folder (repeatable)"
	extensionOffFlagDescription = "uncheck every file with this extension, '.' for none (repeatable)"
	extensionOnFlagDescription  = "check every file with this extension, '.' for none (repeatable)"
	promptFlagDescription       = "text placed before the directory structure"
	promptFileFlagDescription   = "read the pre-prompt from a file"
	modelFlagDescription        = "model whose tokenizer estimates the document size"
	copyFlagDescription         = "copy the document to the clipboard"
	outputFlagDescription       = "write the document to a file instead of stdout"
	diffFlagDescription         = "append a git diff: pending, branches or commits"
	diffFromFlagDescription     = "first branch or commit of the comparison"
	diffToFlagDescription       = "second branch or commit of the comparison"
	debounceFlagDescription     = "quiet period before regenerating"

	generateUse              = types.CommandGenerate + pathArgumentSuffix
	generateAlias            = "g"
	generateShortDescription = "produce the document for a folder (" + generateAlias + ")"
	generateLongDescription  = `Build the selection tree for a folder and print the generated document.
Selection flags are applied in order: --ext-off, --ext-on, --deselect, --select.
The summary and token estimate are written to stderr.`
	generateUsageExample = `  # Document the current folder without markdown files
  repotxt generate --ext-off md

  # Add pending changes and copy the result
  repotxt g --diff --copy ./service`

	watchUse              = types.CommandWatch + pathArgumentSuffix
	watchAlias            = "w"
	watchShortDescription = "regenerate the document on file changes (" + watchAlias + ")"
	watchLongDescription  = `Generate the document, then regenerate it whenever files in the folder change.
Checked files stay checked across refreshes. Stop with Ctrl+C.`

	errorResolvePathFormat  = "resolving %s: %w"
	errorPromptFileFormat   = "reading prompt file %s: %w"
	errorWriteOutputFormat  = "writing output to %s: %w"
	errorCopyFormat         = "copying to clipboard: %w"
	errorDiffModeFormat     = "invalid diff mode %q: use pending, branches or commits"
	errorExtensionFormat    = "applying extension filter %s: %w"
	errorSelectionFormat    = "applying selection for %s: %w"
	warningWatchCycleFormat = "watch cycle failed"
	infoFilterAppliedFormat = "extension %s: %d files changed"
)

// selectionFlags holds the flags shared by every command that loads a folder.
type selectionFlags struct {
	preset        bool
	exclusions    []string
	noIgnore      bool
	deselectPaths []string
	selectPaths   []string
	extensionsOff []string
	extensionsOn  []string
}

// addSelectionFlags registers selection-related flags on the command.
func addSelectionFlags(command *cobra.Command, flags *selectionFlags) {
	registerBooleanFlag(command.Flags(), &flags.preset, presetFlagName, true, presetFlagDescription)
	command.Flags().StringArrayVarP(&flags.exclusions, exclusionFlagName, exclusionShorthand, nil, exclusionFlagDescription)
	registerBooleanFlag(command.Flags(), &flags.noIgnore, noIgnoreFlagName, false, noIgnoreFlagDescription)
	command.Flags().StringArrayVar(&flags.deselectPaths, deselectFlagName, nil, deselectFlagDescription)
	command.Flags().StringArrayVar(&flags.selectPaths, selectFlagName, nil, selectFlagDescription)
	command.Flags().StringArrayVar(&flags.extensionsOff, extensionOffFlagName, nil, extensionOffFlagDescription)
	command.Flags().StringArrayVar(&flags.extensionsOn, extensionOnFlagName, nil, extensionOnFlagDescription)
}

// documentFlags holds the flags of commands that emit the document.
type documentFlags struct {
	prompt     string
	promptFile string
	model      string
	copy       bool
	outputPath string
}

func addDocumentFlags(command *cobra.Command, flags *documentFlags) {
	command.Flags().StringVar(&flags.prompt, promptFlagName, "", promptFlagDescription)
	command.Flags().StringVar(&flags.promptFile, promptFileFlagName, "", promptFileFlagDescription)
	command.Flags().StringVar(&flags.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	registerBooleanFlag(command.Flags(), &flags.copy, copyFlagName, false, copyFlagDescription)
	command.Flags().StringVarP(&flags.outputPath, outputFlagName, "o", "", outputFlagDescription)
}

// documentSettings are the document flags merged with configuration.
type documentSettings struct {
	prompt     string
	model      string
	copy       bool
	outputPath string
}

func resolveDocumentSettings(command *cobra.Command, flags documentFlags, configuration config.GenerateConfiguration) (documentSettings, error) {
	settings := documentSettings{
		prompt:     configuration.Prompt,
		model:      flags.model,
		copy:       flags.copy,
		outputPath: flags.outputPath,
	}
	if command.Flags().Changed(promptFlagName) {
		settings.prompt = flags.prompt
	}
	if flags.promptFile != "" {
		content, readError := os.ReadFile(flags.promptFile)
		if readError != nil {
			return documentSettings{}, fmt.Errorf(errorPromptFileFormat, flags.promptFile, readError)
		}
		settings.prompt = string(content)
	}
	if !command.Flags().Changed(modelFlagName) && configuration.Model != "" {
		settings.model = configuration.Model
	}
	if !command.Flags().Changed(copyFlagName) && configuration.Copy != nil {
		settings.copy = *configuration.Copy
	}
	if !command.Flags().Changed(outputFlagName) && configuration.Output != "" {
		settings.outputPath = configuration.Output
	}
	return settings, nil
}

// rootArgument returns the folder argument or the working directory.
func rootArgument(arguments []string) (string, error) {
	path := defaultPath
	if len(arguments) > 0 {
		path = arguments[0]
	}
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return "", fmt.Errorf(errorResolvePathFormat, path, absoluteError)
	}
	return absolutePath, nil
}

// openSession loads the folder into a new session and applies the selection flags.
func openSession(ctx context.Context, command *cobra.Command, env *environment, flags selectionFlags, configuration config.GenerateConfiguration, rootPath string) (*session.Session, error) {
	presetEnabled := flags.preset
	if !command.Flags().Changed(presetFlagName) && configuration.Preset != nil {
		presetEnabled = *configuration.Preset
	}
	useIgnoreFile := !flags.noIgnore
	if !command.Flags().Changed(noIgnoreFlagName) && configuration.UseIgnore != nil {
		useIgnoreFile = *configuration.UseIgnore
	}
	exclusions := append(append([]string{}, configuration.Exclude...), flags.exclusions...)
	patterns, patternsError := config.LoadCombinedPatterns(rootPath, exclusions, useIgnoreFile)
	if patternsError != nil {
		return nil, patternsError
	}

	var estimator *tokenizer.Estimator
	if env.newEstimator != nil {
		estimator = env.newEstimator(env.logger)
	}
	owner := session.New(session.Options{
		PresetEnabled: presetEnabled,
		UserPatterns:  patterns,
		Estimator:     estimator,
		Logger:        env.logger,
	})
	if _, selectError := owner.SelectFolder(ctx, rootPath); selectError != nil {
		return nil, selectError
	}
	if applyError := applySelectionFlags(owner, flags, env.logger); applyError != nil {
		return nil, applyError
	}
	return owner, nil
}

func applySelectionFlags(owner *session.Session, flags selectionFlags, logger *zap.Logger) error {
	logger = utils.LoggerOrNop(logger)
	extensionGroups := []struct {
		extensions []string
		checked    bool
	}{
		{extensions: flags.extensionsOff, checked: false},
		{extensions: flags.extensionsOn, checked: true},
	}
	for _, group := range extensionGroups {
		for _, extension := range group.extensions {
			changed, filterError := owner.ToggleExtensionFilter(extension, group.checked)
			if filterError != nil {
				return fmt.Errorf(errorExtensionFormat, extension, filterError)
			}
			logger.Debug(fmt.Sprintf(infoFilterAppliedFormat, extension, changed))
		}
	}
	pathGroups := []struct {
		paths []string
		state selection.CheckState
	}{
		{paths: flags.deselectPaths, state: selection.Unchecked},
		{paths: flags.selectPaths, state: selection.Checked},
	}
	for _, group := range pathGroups {
		for _, path := range group.paths {
			if toggleError := owner.ToggleNode(filepath.Clean(path), group.state); toggleError != nil {
				return fmt.Errorf(errorSelectionFormat, path, toggleError)
			}
		}
	}
	return nil
}

func parseDiffMode(value string) (types.DiffMode, error) {
	mode, known := types.ParseDiffMode(value)
	if !known {
		return types.DiffModeNone, fmt.Errorf(errorDiffModeFormat, value)
	}
	return mode, nil
}

// emitDocument writes the document, reports its size and token estimate on
// stderr, and copies it when requested.
func emitDocument(command *cobra.Command, env *environment, owner *session.Session, settings documentSettings, result types.GenerationResult, text string) error {
	if settings.outputPath != "" {
		if writeError := os.WriteFile(settings.outputPath, []byte(text), 0o644); writeError != nil {
			return fmt.Errorf(errorWriteOutputFormat, settings.outputPath, writeError)
		}
	} else if _, writeError := io.WriteString(command.OutOrStdout(), text); writeError != nil {
		return writeError
	}

	errorWriter := command.ErrOrStderr()
	fmt.Fprintln(errorWriter, output.FormatSummaryLine(output.SummarizeGeneration(result)))
	fmt.Fprintln(errorWriter, output.FormatTokenLine(owner.EstimateTokens(text, settings.model)))

	if settings.copy {
		if copyError := env.copier.Copy(text); copyError != nil {
			return fmt.Errorf(errorCopyFormat, copyError)
		}
	}
	return nil
}

// createGenerateCommand returns the generate subcommand.
func createGenerateCommand(env *environment) *cobra.Command {
	var selectionOptions selectionFlags
	var document documentFlags
	var diffModeValue string
	var diffFrom string
	var diffTo string

	generateCommand := &cobra.Command{
		Use:     generateUse,
		Aliases: []string{generateAlias},
		Short:   generateShortDescription,
		Long:    generateLongDescription,
		Example: generateUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			diffMode, diffModeError := parseDiffMode(diffModeValue)
			if diffModeError != nil {
				return diffModeError
			}
			rootPath, rootError := rootArgument(arguments)
			if rootError != nil {
				return rootError
			}
			configuration, configurationError := env.loadConfiguration()
			if configurationError != nil {
				return configurationError
			}
			settings, settingsError := resolveDocumentSettings(command, document, configuration.Generate)
			if settingsError != nil {
				return settingsError
			}

			ctx := command.Context()
			owner, sessionError := openSession(ctx, command, env, selectionOptions, configuration.Generate, rootPath)
			if sessionError != nil {
				return sessionError
			}
			result, generateError := owner.GenerateOutput(ctx, settings.prompt)
			if generateError != nil {
				return generateError
			}
			text := result.Text
			if diffMode != types.DiffModeNone {
				diffText, diffError := renderDiff(rootPath, diffMode, diffFrom, diffTo)
				if diffError != nil {
					return diffError
				}
				text = output.AppendDiffSection(text, diffText)
			}
			return emitDocument(command, env, owner, settings, result, text)
		},
	}

	addSelectionFlags(generateCommand, &selectionOptions)
	addDocumentFlags(generateCommand, &document)
	generateCommand.Flags().StringVar(&diffModeValue, diffFlagName, "", diffFlagDescription)
	if lookup := generateCommand.Flags().Lookup(diffFlagName); lookup != nil {
		lookup.NoOptDefVal = diffFlagDefaultOption
	}
	generateCommand.Flags().StringVar(&diffFrom, diffFromFlagName, "", diffFromFlagDescription)
	generateCommand.Flags().StringVar(&diffTo, diffToFlagName, "", diffToFlagDescription)
	return generateCommand
}

func renderDiff(rootPath string, mode types.DiffMode, from string, to string) (string, error) {
	repository, openError := gitdiff.Open(rootPath)
	if openError != nil {
		return "", openError
	}
	return repository.Diff(mode, from, to)
}

// createWatchCommand returns the watch subcommand.
func createWatchCommand(env *environment) *cobra.Command {
	var selectionOptions selectionFlags
	var document documentFlags
	var debounceValue string

	watchCommand := &cobra.Command{
		Use:     watchUse,
		Aliases: []string{watchAlias},
		Short:   watchShortDescription,
		Long:    watchLongDescription,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			rootPath, rootError := rootArgument(arguments)
			if rootError != nil {
				return rootError
			}
			configuration, configurationError := env.loadConfiguration()
			if configurationError != nil {
				return configurationError
			}
			settings, settingsError := resolveDocumentSettings(command, document, configuration.Generate)
			if settingsError != nil {
				return settingsError
			}
			watchConfiguration := configuration.Watch
			if command.Flags().Changed(debounceFlagName) {
				watchConfiguration.Debounce = debounceValue
			}
			debounce, debounceError := watchConfiguration.DebounceInterval()
			if debounceError != nil {
				return debounceError
			}

			ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			owner, sessionError := openSession(ctx, command, env, selectionOptions, configuration.Generate, rootPath)
			if sessionError != nil {
				return sessionError
			}
			result, generateError := owner.GenerateOutput(ctx, settings.prompt)
			if generateError != nil {
				return generateError
			}
			if emitError := emitDocument(command, env, owner, settings, result, result.Text); emitError != nil {
				return emitError
			}

			var ignorePaths []string
			if settings.outputPath != "" {
				ignorePaths = append(ignorePaths, settings.outputPath)
			}
			watcher := watch.New(owner, watch.Options{
				Debounce:    debounce,
				PrePrompt:   settings.prompt,
				IgnorePaths: ignorePaths,
				Logger:      env.logger,
			})
			return runWatch(ctx, watcher, func(update watch.Update) error {
				if update.Err != nil {
					env.logger.Warn(warningWatchCycleFormat, zap.Error(update.Err))
					return nil
				}
				return emitDocument(command, env, owner, settings, update.Result, update.Result.Text)
			})
		},
	}

	addSelectionFlags(watchCommand, &selectionOptions)
	addDocumentFlags(watchCommand, &document)
	watchCommand.Flags().StringVar(&debounceValue, debounceFlagName, watch.DefaultDebounce.String(), debounceFlagDescription)
	return watchCommand
}

// runWatch runs the watcher and hands each update to consume until ctx ends
// or consume fails.
func runWatch(ctx context.Context, watcher *watch.Watcher, consume func(watch.Update) error) error {
	group, watchCtx := errgroup.WithContext(ctx)
	updates := make(chan watch.Update)

	group.Go(func() error {
		defer close(updates)
		return watcher.Run(watchCtx, updates)
	})

	group.Go(func() error {
		for {
			select {
			case <-watchCtx.Done():
				return watchCtx.Err()
			case update, ok := <-updates:
				if !ok {
					return nil
				}
				if err := consume(update); err != nil {
					return err
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
