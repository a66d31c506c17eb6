// Package main is the entry point for the taskcal CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	_ "time/tzdata" // IANA zones on systems without zoneinfo

	"github.com/runoshun/taskcal/internal/app"
	"github.com/runoshun/taskcal/internal/cli"
)

// version is set at build time using -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Create dependency injection container
	container, err := app.New(ctx, configFlag(os.Args[1:]))
	if err != nil {
		// Help and version work without a usable config or store
		if canRunWithoutContainer(os.Args[1:]) {
			return cli.NewRootCommand(nil, version).Execute()
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = container.Close() }()

	// Create and execute root command
	rootCmd := cli.NewRootCommand(container, version)
	return rootCmd.ExecuteContext(ctx)
}

// configFlag returns the value of --config. The container is built before
// cobra parses flags, so the flag is looked up here.
func configFlag(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func canRunWithoutContainer(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}
	for _, arg := range args {
		if arg == "--version" || arg == "-v" || arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}
