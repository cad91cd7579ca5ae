package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"torrank/internal/services"
)

// Exit codes let scripts tell a bad rule apart from a failed run.
const (
	exitFailure = 1
	exitConfig  = 2
	exitMissing = 3
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(exitFailure)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrValidation):
		return exitConfig
	case errors.Is(err, services.ErrNotFound):
		return exitMissing
	default:
		return exitFailure
	}
}
