package hook

import (
	"context"
	"fmt"
	"strings"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// Apply runs the action against svc and returns a one-line summary for
// stdout. defaultUser is used when the payload names no user; the user is
// created on first use.
func Apply(ctx context.Context, svc *engine.Service, in *ActionInput, defaultUser string) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	name := strings.TrimSpace(in.User)
	if name == "" {
		name = defaultUser
	}
	user, err := svc.EnsureUser(ctx, name)
	if err != nil {
		return "", err
	}

	switch in.Action {
	case ActionCreate:
		return create(ctx, svc, user, in)

	case ActionStart:
		task, err := svc.StartTask(ctx, user.ID, in.TaskID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Started task %d %q", task.ID, task.Title), nil

	case ActionComplete:
		res, err := svc.CompleteTask(ctx, user.ID, in.TaskID)
		if err != nil {
			return "", err
		}
		return CompletionSummary(res), nil

	case ActionDelete:
		if err := svc.DeleteTask(ctx, user.ID, in.TaskID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted task %d", in.TaskID), nil
	}
	return "", &engine.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", in.Action)}
}

func create(ctx context.Context, svc *engine.Service, user *engine.User, in *ActionInput) (string, error) {
	freq, err := engine.ParseFrequency(in.Frequency)
	if err != nil {
		return "", err
	}
	task := engine.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Frequency:   freq,
		XPReward:    in.XPReward,
		Difficulty:  engine.Difficulty(in.Difficulty),
	}
	if strings.TrimSpace(in.DueDate) != "" {
		due, err := engine.ParseDueDate(in.DueDate, svc.Location())
		if err != nil {
			return "", err
		}
		task.DueDate = &due
	}

	created, err := svc.CreateTask(ctx, user.ID, task)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created task %d %q (%s, %d XP)", created.ID, created.Title, created.Frequency, created.XPReward), nil
}

// CompletionSummary renders a completion as one line, e.g.
//
//	Completed "Run": +12 XP (bonus 2, streak 3) | Level 2 Novice, 42/150 XP
func CompletionSummary(res *engine.CompletionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Completed %q: +%d XP", res.Task.Title, res.XPEarned)
	if res.Task.Frequency.IsRecurring() {
		fmt.Fprintf(&b, " (bonus %d, streak %d)", res.StreakBonus, res.Task.CurrentStreak)
	}
	p := res.Progress
	fmt.Fprintf(&b, " | Level %d %s, %d/%d XP", p.Level, p.Title, p.CurrentXP, p.CurrentXP+p.XPToNextLevel)
	if res.LevelUp && res.NewLevel != nil {
		fmt.Fprintf(&b, " | LEVEL UP! Reached level %d", *res.NewLevel)
	}
	return b.String()
}
