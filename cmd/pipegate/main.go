package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

const (
	exitRunnable       = 0
	exitRejected       = 1
	exitConfigError    = 2
	exitInfrastructure = 3
)

var exitFunc = os.Exit

func main() {
	app, err := newAppContext(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise pipegate: %v\n", err)
		os.Exit(exitInfrastructure)
	}

	ctx := ports.WithCorrelationID(context.Background(), ports.GenerateCorrelationID())
	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error onto the process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitRunnable
	case pipegateerrors.IsConfigError(err):
		return exitConfigError
	default:
		return exitInfrastructure
	}
}
