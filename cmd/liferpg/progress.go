package main

import (
	"github.com/spf13/cobra"

	"github.com/JamesPrial/liferpg/internal/app"
	"github.com/JamesPrial/liferpg/internal/engine"
)

func statsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show level, XP and streaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				st, err := a.Service.GetStats(cmd.Context(), a.User.ID)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), st)
				}
				return printStats(cmd.OutOrStdout(), a.User.Name, st)
			})
		},
	}
}

func historyCmd(c *cli) *cobra.Command {
	var days, limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent completions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				completions, err := a.Service.RecentCompletions(ctx, a.User.ID, days, limit)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), completions)
				}
				tasks, err := a.Service.ListTasks(ctx, a.User.ID, engine.TaskFilter{IncludeInactive: true})
				if err != nil {
					return err
				}
				titles := make(map[int64]string, len(tasks))
				for _, t := range tasks {
					titles[t.ID] = t.Title
				}
				return printCompletions(cmd.OutOrStdout(), completions, titles, a.Service.Location())
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", engine.DefaultHistoryDays, "How many days back")
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultHistoryLimit, "Maximum completions")
	return cmd
}

func xpCmd(c *cli) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "xp",
		Short: "Show XP earned per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				history, err := a.Service.GetXPHistory(cmd.Context(), a.User.ID, days)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), history)
				}
				return printXPHistory(cmd.OutOrStdout(), history)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Days before today to include")
	return cmd
}

func categoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List task categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				cats, err := a.Service.ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), cats)
				}
				return printCategories(cmd.OutOrStdout(), cats)
			})
		},
	}
}
