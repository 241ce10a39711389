package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/output"
	"github.com/temirov/repotxt/internal/services/gitdiff"
	"github.com/temirov/repotxt/internal/tokenizer"
	"github.com/temirov/repotxt/internal/types"
	"github.com/temirov/repotxt/internal/utils"
)

const (
	formatFlagName       = "format"
	modeFlagName         = "mode"
	fromFlagName         = "from"
	toFlagName           = "to"
	listBranchesFlagName = "list-branches"

	formatFlagDescription       = "output format: raw or json"
	modeFlagDescription         = "diff mode: pending, branches or commits"
	fromFlagDescription         = "first branch or commit"
	toFlagDescription           = "second branch or commit"
	listBranchesFlagDescription = "list local branches instead of diffing"
	tokensModelFlagDescription  = "model whose tokenizer is used"

	treeUse                    = types.CommandTree + pathArgumentSuffix
	treeAlias                  = "t"
	treeShortDescription       = "display the selection tree (" + treeAlias + ")"
	extensionsUse              = types.CommandExtensions + pathArgumentSuffix
	extensionsAlias            = "x"
	extensionsShortDescription = "list detected file extensions (" + extensionsAlias + ")"
	tokensUse                  = types.CommandTokens + " [file]"
	tokensAlias                = "k"
	tokensShortDescription     = "estimate tokens of a file or stdin (" + tokensAlias + ")"
	diffUse                    = types.CommandDiff + pathArgumentSuffix
	diffShortDescription       = "print a git diff for the folder's repository"
	treeLongDescription        = `Load a folder and print its selection tree with [x], [ ] and [-] markers.
Selection flags apply before printing, so the tree shows what generate would include.`
	treeUsageExample = `  # Show the tree with markdown files unchecked
  repotxt tree --ext-off md

  # Machine-readable tree
  repotxt t --format json ./web`

	invalidFormatMessage   = "Invalid format value '%s'"
	errorReadTokensFormat  = "reading %s: %w"
	errorCountTokensFormat = "counting tokens for %s: %w"
	stdinLabel             = "stdin"
	binaryInputFormat      = "%s looks binary; no tokens counted\n"

	debugDiffRenderedMessage = "diff rendered"
)

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON:
		return true
	default:
		return false
	}
}

// createTreeCommand returns the tree subcommand.
func createTreeCommand(env *environment) *cobra.Command {
	var selectionOptions selectionFlags
	var outputFormat string

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormatLower := strings.ToLower(outputFormat)
			if !isSupportedFormat(outputFormatLower) {
				return fmt.Errorf(invalidFormatMessage, outputFormatLower)
			}
			rootPath, rootError := rootArgument(arguments)
			if rootError != nil {
				return rootError
			}
			configuration, configurationError := env.loadConfiguration()
			if configurationError != nil {
				return configurationError
			}
			owner, sessionError := openSession(command.Context(), command, env, selectionOptions, configuration.Generate, rootPath)
			if sessionError != nil {
				return sessionError
			}
			if outputFormatLower == types.FormatJSON {
				return output.WriteTreeJSON(command.OutOrStdout(), owner.Tree())
			}
			output.WriteTreeRaw(command.OutOrStdout(), owner.Tree())
			return nil
		},
	}

	addSelectionFlags(treeCommand, &selectionOptions)
	treeCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	return treeCommand
}

// createExtensionsCommand returns the extensions subcommand.
func createExtensionsCommand(env *environment) *cobra.Command {
	var selectionOptions selectionFlags

	extensionsCommand := &cobra.Command{
		Use:     extensionsUse,
		Aliases: []string{extensionsAlias},
		Short:   extensionsShortDescription,
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
			owner, sessionError := openSession(command.Context(), command, env, selectionOptions, configuration.Generate, rootPath)
			if sessionError != nil {
				return sessionError
			}
			output.WriteExtensions(command.OutOrStdout(), owner.Extensions())
			return nil
		},
	}

	addSelectionFlags(extensionsCommand, &selectionOptions)
	return extensionsCommand
}

// createTokensCommand returns the tokens subcommand.
func createTokensCommand(env *environment) *cobra.Command {
	var model string

	tokensCommand := &cobra.Command{
		Use:     tokensUse,
		Aliases: []string{tokensAlias},
		Short:   tokensShortDescription,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			if !command.Flags().Changed(modelFlagName) {
				if configuration, configurationError := env.loadConfiguration(); configurationError == nil && configuration.Generate.Model != "" {
					model = configuration.Generate.Model
				}
			}
			estimator := env.estimator()
			label := stdinLabel
			var result tokenizer.CountResult
			var countError error
			if len(arguments) == 1 {
				label = arguments[0]
				result, countError = tokenizer.CountFile(estimator.Counter(model), label)
			} else {
				data, readError := io.ReadAll(command.InOrStdin())
				if readError != nil {
					return fmt.Errorf(errorReadTokensFormat, label, readError)
				}
				result, countError = tokenizer.CountBytes(estimator.Counter(model), data)
			}
			if countError != nil {
				return fmt.Errorf(errorCountTokensFormat, label, countError)
			}
			if !result.Counted {
				fmt.Fprintf(command.ErrOrStderr(), binaryInputFormat, label)
				return nil
			}
			estimate := estimator.Count(utils.EmptyString, model)
			estimate.Count = result.Tokens
			fmt.Fprintln(command.OutOrStdout(), output.FormatTokenLine(estimate))
			return nil
		},
	}

	tokensCommand.Flags().StringVar(&model, modelFlagName, tokenizer.DefaultModel, tokensModelFlagDescription)
	return tokensCommand
}

// createDiffCommand returns the diff subcommand.
func createDiffCommand(env *environment) *cobra.Command {
	var modeValue string
	var from string
	var to string
	var listBranches bool

	diffCommand := &cobra.Command{
		Use:   diffUse,
		Short: diffShortDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			rootPath, rootError := rootArgument(arguments)
			if rootError != nil {
				return rootError
			}
			repository, openError := gitdiff.Open(rootPath)
			if openError != nil {
				return openError
			}
			if listBranches {
				branches, branchesError := repository.Branches()
				if branchesError != nil {
					return branchesError
				}
				for _, branch := range branches {
					fmt.Fprintln(command.OutOrStdout(), branch)
				}
				return nil
			}
			mode, modeError := parseDiffMode(modeValue)
			if modeError != nil {
				return modeError
			}
			if mode == types.DiffModeNone {
				mode = types.DiffModePending
			}
			diffText, diffError := repository.Diff(mode, from, to)
			if diffError != nil {
				return diffError
			}
			env.logger.Debug(debugDiffRenderedMessage, zap.String(modeFlagName, string(mode)))
			fmt.Fprintln(command.OutOrStdout(), diffText)
			return nil
		},
	}

	diffCommand.Flags().StringVar(&modeValue, modeFlagName, string(types.DiffModePending), modeFlagDescription)
	diffCommand.Flags().StringVar(&from, fromFlagName, "", fromFlagDescription)
	diffCommand.Flags().StringVar(&to, toFlagName, "", toFlagDescription)
	registerBooleanFlag(diffCommand.Flags(), &listBranches, listBranchesFlagName, false, listBranchesFlagDescription)
	return diffCommand
}
