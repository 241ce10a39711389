// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repotxt/internal/config"
	"github.com/temirov/repotxt/internal/services/clipboard"
	"github.com/temirov/repotxt/internal/tokenizer"
	"github.com/temirov/repotxt/internal/utils"
)

const (
	versionFlagName      = "version"
	configFlagName       = "config"
	verboseFlagName      = "verbose"
	versionTemplate      = "repotxt version: %s\n"
	defaultPath          = "."
	pathArgumentSuffix   = " [path]"
	rootUse              = utils.ApplicationName
	rootShortDescription = "repotxt command line interface"
	rootLongDescription  = `repotxt turns a folder into one text document for a language model.
It builds a tri-state selection tree, skips excluded paths, and concatenates the
selected files after a directory overview. Use generate to produce the document,
tree and extensions to inspect the selection, watch to regenerate on change,
and serve to drive the selection from another process.`
	versionFlagDescription = "display application version"
	configFlagDescription  = "path to a configuration file used instead of ./" + utils.ConfigFileName
	verboseFlagDescription = "log debug details to stderr"

	errorLoadConfigurationFormat = "loading configuration: %w"
	errorWorkingDirectoryFormat  = "unable to determine working directory: %w"
)

// environment carries the collaborators commands need beyond their flags.
type environment struct {
	logger       *zap.Logger
	copier       clipboard.Copier
	newEstimator func(logger *zap.Logger) *tokenizer.Estimator
	configPath   string
}

func (env *environment) estimator() *tokenizer.Estimator {
	if env.newEstimator == nil {
		return tokenizer.NewEstimator(env.logger, nil)
	}
	return env.newEstimator(env.logger)
}

func (env *environment) loadConfiguration() (config.ApplicationConfiguration, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(errorWorkingDirectoryFormat, workingDirectoryError)
	}
	loaded, loadError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: env.configPath,
	})
	if loadError != nil {
		return config.ApplicationConfiguration{}, fmt.Errorf(errorLoadConfigurationFormat, loadError)
	}
	return loaded, nil
}

// Execute runs the repotxt application.
func Execute(logger *zap.Logger) error {
	env := &environment{
		logger: utils.LoggerOrNop(logger),
		copier: clipboard.NewService(),
	}
	rootCommand := createRootCommand(env)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand(env *environment) *cobra.Command {
	var showVersion bool
	var verbose bool

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			if verbose {
				verboseLogger, loggerError := utils.NewApplicationLogger(true)
				if loggerError != nil {
					return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
				}
				env.logger = verboseLogger
			}
			return nil
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&env.configPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &verbose, verboseFlagName, false, verboseFlagDescription)
	rootCommand.AddCommand(
		createGenerateCommand(env),
		createWatchCommand(env),
		createTreeCommand(env),
		createExtensionsCommand(env),
		createTokensCommand(env),
		createDiffCommand(env),
		createServeCommand(env),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}
