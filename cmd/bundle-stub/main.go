package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oshokin/script-bundler/internal/service/runner"
)

// The stub is the artifact's own entry point: the build appends the payload
// to a copy of this binary, so everything it does happens on the machine of
// the packaged program's user. Keep it quiet unless something goes wrong.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	code, err := runner.Run(ctx, &runner.Options{Args: os.Args[1:]})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
	}

	os.Exit(code)
}
