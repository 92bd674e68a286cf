// Package main implements liferpg-hook, which applies one JSON action read
// from stdin to the liferpg store. It is meant for shell scripts, cron jobs
// and git hooks.
//
// Exit codes:
//   - 0: Success (action applied, or no known action in the payload)
//   - 1: Error (invalid input, config or storage failure, rejected transition)
//
// Environment variables are those of internal/config, most importantly:
//   - LIFERPG_DATA_DIR: Optional. Data directory (default: ~/.liferpg).
//   - LIFERPG_STORAGE_BACKEND: Optional. "json" (default), "sqlite" or "postgres".
//   - LIFERPG_USER: Optional. Player used when the payload names none.
//   - DEBUG: Optional. Enable debug logging to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/JamesPrial/liferpg/internal/app"
	"github.com/JamesPrial/liferpg/internal/config"
	"github.com/JamesPrial/liferpg/internal/hook"
)

// run contains the main logic, returning an exit code.
//
// Process flow:
//  1. Read and parse the action from stdin
//  2. Return 0 if the payload has no known action
//  3. Load the configuration and open the store
//  4. Apply the action and print its summary
//
// All errors are printed to stderr with an "Error: " prefix and return 1.
func run(stdin io.Reader, stdout, stderr io.Writer) int {
	input, err := hook.ReadActionInput(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if input == nil {
		return 0
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, log.New(stderr, "[liferpg-hook] ", log.LstdFlags))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	summary, err := hook.Apply(ctx, a.Service, input, a.Config.User)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, summary)
	return 0
}

func main() {
	os.Exit(run(os.Stdin, os.Stdout, os.Stderr))
}
