package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JamesPrial/liferpg/internal/engine"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(time.DateOnly)
}

func printTasks(w io.Writer, tasks []engine.Task, loc *time.Location) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFREQ\tSTATUS\tXP\tSTREAK\tDUE")
	for _, t := range tasks {
		title := t.Title
		if !t.IsActive {
			title += " (deleted)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			t.ID, title, t.Frequency, t.Status,
			engine.BaseXP(t.XPReward, t.Difficulty),
			t.CurrentStreak, t.BestStreak,
			formatDate(t.DueDate, loc))
	}
	return tw.Flush()
}

// progressBar renders current/span as a fixed-width bar.
func progressBar(current, span, width int) string {
	filled := 0
	if span > 0 {
		filled = current * width / span
	}
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func printStats(w io.Writer, name string, st *engine.Stats) error {
	span := st.CurrentXP + st.XPToNextLevel
	_, err := fmt.Fprintf(w,
		"%s: Level %d %s\nXP: %s %d/%d (total %d)\nCompleted: %d\nStreak: %d (best %d)\n",
		name, st.Level, st.Title,
		progressBar(st.CurrentXP, span, 20), st.CurrentXP, span, st.TotalXP,
		st.TasksCompleted,
		st.CurrentStreak, st.BestStreak)
	return err
}

func printXPHistory(w io.Writer, days []engine.DayXP) error {
	peak := 0
	for _, d := range days {
		peak = max(peak, d.XP)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range days {
		bar := ""
		if peak > 0 {
			bar = strings.Repeat("#", d.XP*30/peak)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Date, d.XP, bar)
	}
	return tw.Flush()
}

func printCompletions(w io.Writer, completions []engine.TaskCompletion, titles map[int64]string, loc *time.Location) error {
	if len(completions) == 0 {
		_, err := fmt.Fprintln(w, "No completions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTASK\tXP\tBONUS")
	for _, c := range completions {
		title := titles[c.TaskID]
		if title == "" {
			title = fmt.Sprintf("#%d", c.TaskID)
		}
		note := ""
		if c.LevelUp && c.NewLevel != nil {
			note = fmt.Sprintf("\tlevel %d!", *c.NewLevel)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d%s\n",
			c.CompletedAt.In(loc).Format("2006-01-02 15:04"), title, c.XPEarned, c.StreakBonus, note)
	}
	return tw.Flush()
}

func printCategories(w io.Writer, cats []engine.Category) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBASE XP\tDESCRIPTION")
	for _, c := range cats {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.Name, c.BaseXP, c.Description)
	}
	return tw.Flush()
}
