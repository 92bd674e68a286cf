package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/liferpg/internal/app"
	"github.com/JamesPrial/liferpg/internal/engine"
	"github.com/JamesPrial/liferpg/internal/hook"
)

const defaultCategory = "Habits"

// resolveCategory accepts a category id or a case-insensitive name.
func resolveCategory(ctx context.Context, svc *engine.Service, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	cats, err := svc.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return 0, &engine.ValidationError{Field: "category", Reason: fmt.Sprintf("no category named %q", ref)}
}

func addCmd(c *cli) *cobra.Command {
	var (
		category    string
		freq        string
		xp          int
		difficulty  int
		due         string
		description string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Example: `  liferpg add "Morning run" -c Health
  liferpg add "File taxes" -f once --due 2025-04-15 -d 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				f, err := engine.ParseFrequency(freq)
				if err != nil {
					return err
				}
				catID, err := resolveCategory(ctx, a.Service, category)
				if err != nil {
					return err
				}
				in := engine.CreateTaskInput{
					Title:       strings.Join(args, " "),
					Description: description,
					CategoryID:  catID,
					Frequency:   f,
					XPReward:    xp,
					Difficulty:  engine.Difficulty(difficulty),
				}
				if due != "" {
					d, err := engine.ParseDueDate(due, a.Service.Location())
					if err != nil {
						return err
					}
					in.DueDate = &d
				}

				task, err := a.Service.CreateTask(ctx, a.User.ID, in)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %d %q (%s, %d XP)\n",
					task.ID, task.Title, task.Frequency, engine.BaseXP(task.XPReward, task.Difficulty))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", defaultCategory, "Category id or name")
	cmd.Flags().StringVarP(&freq, "freq", "f", string(engine.FrequencyDaily), "daily, weekly, monthly or once")
	cmd.Flags().IntVar(&xp, "xp", 0, "XP reward (default: the category's base XP)")
	cmd.Flags().IntVarP(&difficulty, "difficulty", "d", int(engine.DefaultDifficulty), "1 normal, 2 hard, 3 very hard")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringVar(&description, "desc", "", "Description")
	return cmd
}

func startCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a pending task as in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				task, err := a.Service.StartTask(cmd.Context(), a.User.ID, id)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started task %d %q\n", task.ID, task.Title)
				return nil
			})
		},
	}
}

func doneCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "done <id>",
		Aliases: []string{"complete"},
		Short:   "Complete a task and collect its XP",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				res, err := a.Service.CompleteTask(cmd.Context(), a.User.ID, id)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hook.CompletionSummary(res))
				return nil
			})
		},
	}
}

func rmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task, keeping its completion history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				if err := a.Service.DeleteTask(cmd.Context(), a.User.ID, id); err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
				return nil
			})
		},
	}
}

func editCmd(c *cli) *cobra.Command {
	var (
		title       string
		description string
		category    string
		freq        string
		xp          int
		difficulty  int
		due         string
		clearDue    bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				var p engine.TaskPatch
				if flags.Changed("title") {
					p.Title = &title
				}
				if flags.Changed("desc") {
					p.Description = &description
				}
				if flags.Changed("category") {
					catID, err := resolveCategory(ctx, a.Service, category)
					if err != nil {
						return err
					}
					p.CategoryID = &catID
				}
				if flags.Changed("freq") {
					f, err := engine.ParseFrequency(freq)
					if err != nil {
						return err
					}
					p.Frequency = &f
				}
				if flags.Changed("xp") {
					p.XPReward = &xp
				}
				if flags.Changed("difficulty") {
					d := engine.Difficulty(difficulty)
					p.Difficulty = &d
				}
				if flags.Changed("due") {
					d, err := engine.ParseDueDate(due, a.Service.Location())
					if err != nil {
						return err
					}
					p.DueDate = &d
				}
				p.ClearDue = clearDue
				if p.IsEmpty() {
					return fmt.Errorf("nothing to update; pass at least one flag")
				}

				task, err := a.Service.UpdateTask(ctx, a.User.ID, id, p)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d %q\n", task.ID, task.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "desc", "", "New description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category id or name")
	cmd.Flags().StringVarP(&freq, "freq", "f", "", "daily, weekly, monthly or once")
	cmd.Flags().IntVar(&xp, "xp", 0, "XP reward")
	cmd.Flags().IntVarP(&difficulty, "difficulty", "d", 0, "1 normal, 2 hard, 3 very hard")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func todayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List tasks due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				tasks, err := a.Service.GetTasksDueToday(cmd.Context(), a.User.ID, time.Now())
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				return printTasks(cmd.OutOrStdout(), tasks, a.Service.Location())
			})
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	var (
		freq     string
		status   string
		category string
		all      bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				filter := engine.TaskFilter{
					Frequency:       engine.Frequency(strings.ToLower(freq)),
					Status:          engine.Status(strings.ToLower(status)),
					IncludeInactive: all,
				}
				if category != "" {
					id, err := resolveCategory(ctx, a.Service, category)
					if err != nil {
						return err
					}
					filter.CategoryID = id
				}
				tasks, err := a.Service.ListTasks(ctx, a.User.ID, filter)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				return printTasks(cmd.OutOrStdout(), tasks, a.Service.Location())
			})
		},
	}
	cmd.Flags().StringVarP(&freq, "freq", "f", "", "Only this frequency")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only this status: pending, in_progress or completed")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category id or name")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include deleted tasks")
	return cmd
}
