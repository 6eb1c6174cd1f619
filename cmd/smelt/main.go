// Package main provides the smelt CLI entrypoint.
//
// All commands except `convert` and `batch` are read-only.
//
// Usage:
//
//	smelt <command> [options]
//
// Exit codes for `convert`:
//   - 0: conversion succeeded
//   - 2: validation failure (no step ran)
//   - 130: canceled
//   - otherwise: the failing step's exit code, unmodified
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/pyrite-io/smelt/cli/cmd"
	"github.com/pyrite-io/smelt/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	// Thread count is resolved once here and passed down explicitly;
	// nothing below this reads machine state for defaults.
	defaultThreads := runtime.NumCPU()

	app := &cli.App{
		Name:           "smelt",
		Usage:          "Model conversion pipeline CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ConvertCommand(defaultThreads),
			cmd.BatchCommand(defaultThreads),
			cmd.CheckCommand(),
			cmd.FamiliesCommand(),
			cmd.JournalCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit() so that step exit codes propagate unmodified.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
