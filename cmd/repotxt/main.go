package main

import (
	"fmt"

	"github.com/temirov/repotxt/internal/cli"
	"github.com/temirov/repotxt/internal/utils"
)

// main is the entry point for the repotxt command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(false)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer func() { _ = loggerInstance.Sync() }()
	if applicationExecutionError := cli.Execute(loggerInstance); applicationExecutionError != nil {
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
