package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	rootcmd "github.com/go-ports/lazyvault/cmd/lazyvault/root"
	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, shared.Describe(err))
		os.Exit(shared.ExitCode(err))
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return rootcmd.New().ExecuteContext(ctx)
}
