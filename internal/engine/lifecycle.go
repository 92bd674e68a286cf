package engine

import (
	"fmt"
	"strings"
	"time"
)

// CreateTaskInput is everything needed to create a task in one call.
type CreateTaskInput struct {
	Title       string
	Description string
	CategoryID  int64
	Frequency   Frequency
	// XPReward falls back to the category's base XP when zero.
	XPReward   int
	Difficulty Difficulty
	DueDate    *time.Time
}

// NewTask validates input and builds a pending task. cat is the category the
// input refers to, or nil when it does not exist.
func NewTask(userID int64, in CreateTaskInput, cat *Category, now time.Time) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !in.Frequency.IsValid() {
		return nil, &ValidationError{Field: "frequency", Reason: "must be one of daily, weekly, monthly, once; got " + quote(string(in.Frequency))}
	}
	if cat == nil {
		return nil, &ValidationError{Field: "category_id", Reason: fmt.Sprintf("category %d does not exist", in.CategoryID)}
	}
	if in.XPReward < 0 {
		return nil, &ValidationError{Field: "xp_reward", Reason: "must not be negative"}
	}
	difficulty, err := normalizeDifficulty(in.Difficulty)
	if err != nil {
		return nil, err
	}

	reward := in.XPReward
	if reward == 0 {
		reward = cat.BaseXP
	}

	return &Task{
		UserID:      userID,
		CategoryID:  cat.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Frequency:   in.Frequency,
		Status:      StatusPending,
		XPReward:    reward,
		Difficulty:  difficulty,
		DueDate:     cloneTime(in.DueDate),
		IsActive:    true,
		CreatedAt:   now,
	}, nil
}

func normalizeDifficulty(d Difficulty) (Difficulty, error) {
	if d == 0 {
		return DefaultDifficulty, nil
	}
	if !d.IsValid() {
		return 0, &ValidationError{Field: "difficulty", Reason: fmt.Sprintf("must be 1, 2 or 3; got %d", d)}
	}
	return d, nil
}

// Start moves a pending task to in_progress.
func Start(t *Task) error {
	if !t.IsActive {
		return &InactiveTaskError{TaskID: t.ID}
	}
	if t.Status != StatusPending {
		return &TransitionError{TaskID: t.ID, From: t.Status, Action: "start"}
	}
	t.Status = StatusInProgress
	return nil
}

// Complete applies the complete transition at now and returns the draft the
// progression engine finalizes. The task is only modified when the whole
// transition succeeds.
func Complete(t *Task, now time.Time) (CompletionDraft, error) {
	if !t.IsActive {
		return CompletionDraft{}, &InactiveTaskError{TaskID: t.ID}
	}
	if t.Status != StatusPending && t.Status != StatusInProgress {
		return CompletionDraft{}, &TransitionError{TaskID: t.ID, From: t.Status, Action: "complete"}
	}

	base := BaseXP(t.XPReward, t.Difficulty)
	streak := AdvanceStreak(t.Frequency, StreakState{
		Current:       t.CurrentStreak,
		Best:          t.BestStreak,
		LastCompleted: t.LastCompleted,
	}, base, now)
	sched, err := Reschedule(t.Frequency, now)
	if err != nil {
		return CompletionDraft{}, fmt.Errorf("task %d: %w", t.ID, err)
	}

	t.CurrentStreak = streak.Current
	t.BestStreak = streak.Best
	t.Status = sched.NextStatus
	t.DueDate = sched.NextDue
	completedAt := now
	t.LastCompleted = &completedAt

	return CompletionDraft{
		TaskID:      t.ID,
		UserID:      t.UserID,
		CompletedAt: now,
		BaseXP:      base,
		StreakBonus: streak.Bonus,
		XPEarned:    base + streak.Bonus,
		Streak:      streak.Current,
	}, nil
}

// Deactivate soft-deletes a task. It is legal from any status, once.
func Deactivate(t *Task) error {
	if !t.IsActive {
		return &InactiveTaskError{TaskID: t.ID}
	}
	t.IsActive = false
	return nil
}

// TaskPatch holds optional edits to a task. Nil fields are left unchanged.
// Status, streaks and last completion are owned by the state machine and
// cannot be patched.
type TaskPatch struct {
	Title       *string
	Description *string
	CategoryID  *int64
	Frequency   *Frequency
	XPReward    *int
	Difficulty  *Difficulty
	DueDate     *time.Time
	ClearDue    bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CategoryID == nil &&
		p.Frequency == nil && p.XPReward == nil && p.Difficulty == nil &&
		p.DueDate == nil && !p.ClearDue
}

// ApplyPatch validates p against t and applies it. cat must be the category
// named by p.CategoryID when that field is set, nil if it does not exist.
func ApplyPatch(t *Task, p TaskPatch, cat *Category) error {
	if !t.IsActive {
		return &InactiveTaskError{TaskID: t.ID}
	}

	next := t.Clone()
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.CategoryID != nil {
		if cat == nil {
			return &ValidationError{Field: "category_id", Reason: fmt.Sprintf("category %d does not exist", *p.CategoryID)}
		}
		next.CategoryID = cat.ID
	}
	if p.Frequency != nil {
		if !p.Frequency.IsValid() {
			return &ValidationError{Field: "frequency", Reason: "must be one of daily, weekly, monthly, once; got " + quote(string(*p.Frequency))}
		}
		if *p.Frequency == FrequencyOnce {
			next.CurrentStreak = 0
		}
		next.Frequency = *p.Frequency
		// A finished one-off that becomes recurring is open again.
		if next.Status == StatusCompleted && next.Frequency.IsRecurring() {
			next.Status = StatusPending
		}
	}
	if p.XPReward != nil {
		if *p.XPReward <= 0 {
			return &ValidationError{Field: "xp_reward", Reason: "must be positive"}
		}
		next.XPReward = *p.XPReward
	}
	if p.Difficulty != nil {
		d, err := normalizeDifficulty(*p.Difficulty)
		if err != nil {
			return err
		}
		next.Difficulty = d
	}
	if p.ClearDue {
		next.DueDate = nil
	} else if p.DueDate != nil {
		next.DueDate = cloneTime(p.DueDate)
	}

	*t = *next
	return nil
}
