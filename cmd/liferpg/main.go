// Package main implements liferpg, a command-line habit tracker that turns
// completed tasks into XP, streaks and levels.
//
// Configuration is read from ~/.liferpg/config.yaml and LIFERPG_* environment
// variables; see internal/config.
//
// Exit codes:
//   - 0: success
//   - 1: any error (printed to stderr as "Error: ...")
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/liferpg/internal/app"
	"github.com/JamesPrial/liferpg/internal/config"
	"github.com/JamesPrial/liferpg/internal/engine"
)

// Version is printed by --version.
const Version = "1.0.0"

// cli holds the root flags shared by every subcommand.
type cli struct {
	configPath string
	user       string
	jsonOutput bool

	logger *log.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "liferpg",
		Short:         "Level up by completing your tasks and habits",
		Long:          "liferpg tracks recurring habits and one-off tasks, awarding XP with streak bonuses and levels.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default ~/.liferpg/config.yaml)")
	root.PersistentFlags().StringVarP(&c.user, "user", "u", "", "Player name (overrides config)")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output as JSON")

	root.AddCommand(
		addCmd(c),
		startCmd(c),
		doneCmd(c),
		rmCmd(c),
		editCmd(c),
		todayCmd(c),
		listCmd(c),
		statsCmd(c),
		historyCmd(c),
		xpCmd(c),
		categoriesCmd(c),
		devdbCmd(c),
	)
	return root
}

// open loads the configuration and opens the app for one command.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.user != "" {
		cfg.User = c.user
	}
	return app.Open(ctx, cfg, c.logger)
}

// withApp runs fn against an opened app and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Printf("close: %v", err)
		}
	}()
	return fn(a)
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &engine.ValidationError{Field: "task id", Reason: fmt.Sprintf("must be a positive integer; got %q", s)}
	}
	return id, nil
}

// run executes the CLI with args and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{logger: log.New(stderr, "[liferpg] ", log.LstdFlags)}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
