package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/temirov/repotxt/internal/services/control"
	"github.com/temirov/repotxt/internal/types"
)

const (
	addressFlagName        = "address"
	addressFlagDescription = "listen address of the control API"

	serveUse              = types.CommandServe + pathArgumentSuffix
	serveShortDescription = "serve the selection session over a local HTTP API"
	serveLongDescription  = `Load a folder and expose its selection session on a local HTTP API.
GET /capabilities lists the commands; POST /commands/<name> runs one with a JSON
payload. A command sent while another one runs is answered with 409 Conflict.`
	serveListeningFormat = "Control API listening on http://%s\n"
)

// createServeCommand returns the serve subcommand.
func createServeCommand(env *environment) *cobra.Command {
	var selectionOptions selectionFlags
	var address string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			rootPath, rootError := rootArgument(arguments)
			if rootError != nil {
				return rootError
			}
			configuration, configurationError := env.loadConfiguration()
			if configurationError != nil {
				return configurationError
			}

			ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			owner, sessionError := openSession(ctx, command, env, selectionOptions, configuration.Generate, rootPath)
			if sessionError != nil {
				return sessionError
			}
			server := control.NewServer(control.Config{
				Address:      address,
				Capabilities: control.SessionCapabilities(),
				Executors:    control.SessionExecutors(owner),
				Logger:       env.logger,
			})
			return server.Run(ctx, func(boundAddress string) {
				fmt.Fprintf(command.ErrOrStderr(), serveListeningFormat, boundAddress)
			})
		},
	}

	addSelectionFlags(serveCommand, &selectionOptions)
	serveCommand.Flags().StringVar(&address, addressFlagName, control.DefaultListenAddress, addressFlagDescription)
	return serveCommand
}
