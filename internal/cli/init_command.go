package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/repotxt/internal/config"
	"github.com/temirov/repotxt/internal/types"
)

const (
	globalFlagName = "global"
	forceFlagName  = "force"

	globalFlagDescription = "write the configuration under the home directory"
	forceFlagDescription  = "overwrite an existing configuration file"

	initUse              = types.CommandInit
	initShortDescription = "write the default configuration"
	initCompletedFormat  = "Configuration written to %s\n"
)

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), initCompletedFormat, path)
			return nil
		},
	}

	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
