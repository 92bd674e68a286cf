// Package engine implements the task lifecycle and progression rules of
// liferpg: how a task moves between states, how recurring tasks are
// rescheduled, and how a completion turns into XP, streaks and levels.
//
// The package is persistence-agnostic. All reads and writes go through the
// Store and Tx interfaces, which the storage package implements.
package engine

import (
	"strings"
	"time"
)

// Frequency is how often a task recurs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyOnce    Frequency = "once"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOnce:
		return true
	default:
		return false
	}
}

// IsRecurring reports whether the task reopens after completion.
func (f Frequency) IsRecurring() bool {
	return f.IsValid() && f != FrequencyOnce
}

// ParseFrequency normalizes user input to a Frequency.
func ParseFrequency(input string) (Frequency, error) {
	f := Frequency(strings.TrimSpace(strings.ToLower(input)))
	if !f.IsValid() {
		return "", &ValidationError{Field: "frequency", Reason: "must be one of daily, weekly, monthly, once; got " + quote(input)}
	}
	return f, nil
}

// ParseDueDate accepts YYYY-MM-DD, taken as local midnight in loc, or an
// RFC 3339 timestamp. The result is in UTC.
func ParseDueDate(input string, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if t, err := time.ParseInLocation(time.DateOnly, input, loc); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "due_date", Reason: "want YYYY-MM-DD or RFC 3339; got " + quote(input)}
	}
	return t.UTC(), nil
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Difficulty is an integer tier that scales a task's base XP.
type Difficulty int

const (
	DifficultyNormal   Difficulty = 1
	DifficultyHard     Difficulty = 2
	DifficultyVeryHard Difficulty = 3
)

// DefaultDifficulty is used when the caller leaves difficulty unset.
const DefaultDifficulty = DifficultyNormal

func (d Difficulty) IsValid() bool {
	return d >= DifficultyNormal && d <= DifficultyVeryHard
}

// multiplierPercent returns the XP multiplier for the tier, in percent.
func (d Difficulty) multiplierPercent() int {
	switch d {
	case DifficultyHard:
		return 150
	case DifficultyVeryHard:
		return 200
	default:
		return 100
	}
}

// BaseXP is the XP a single completion is worth before any streak bonus.
func BaseXP(xpReward int, d Difficulty) int {
	if xpReward <= 0 {
		return 0
	}
	return xpReward * d.multiplierPercent() / 100
}

// User is the per-user progression ledger. Level, title and the XP window are
// never stored; they are derived from TotalXP on demand.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TotalXP   int       `json:"total_xp"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress derives the user's level information from TotalXP.
func (u *User) Progress() LevelInfo {
	return LevelFor(u.TotalXP)
}

// Category classifies tasks and supplies a default XP reward.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	BaseXP      int    `json:"base_xp"`
}

// Task is a unit of recurring or one-off work owned by a single user.
type Task struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	CategoryID    int64      `json:"category_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Frequency     Frequency  `json:"frequency"`
	Status        Status     `json:"status"`
	XPReward      int        `json:"xp_reward"`
	Difficulty    Difficulty `json:"difficulty"`
	CurrentStreak int        `json:"current_streak"`
	BestStreak    int        `json:"best_streak"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	LastCompleted *time.Time `json:"last_completed,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.LastCompleted = cloneTime(t.LastCompleted)
	return &c
}

// CompletionDraft is produced by the lifecycle state machine on a successful
// complete transition and finalized by ApplyCompletion.
type CompletionDraft struct {
	TaskID      int64
	UserID      int64
	CompletedAt time.Time
	BaseXP      int
	StreakBonus int
	XPEarned    int
	Streak      int
}

// TaskCompletion is the immutable record of one successful completion.
type TaskCompletion struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	UserID      int64     `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
	XPEarned    int       `json:"xp_earned"`
	StreakBonus int       `json:"streak_bonus"`
	LevelUp     bool      `json:"level_up"`
	NewLevel    *int      `json:"new_level,omitempty"`
}

// Stats summarizes a user's progression.
type Stats struct {
	Level          int    `json:"level"`
	CurrentXP      int    `json:"current_xp"`
	XPToNextLevel  int    `json:"xp_to_next_level"`
	TotalXP        int    `json:"total_xp"`
	Title          string `json:"title"`
	TasksCompleted int    `json:"tasks_completed"`
	CurrentStreak  int    `json:"current_streak"`
	BestStreak     int    `json:"best_streak"`
}

// DayXP is the XP earned on one calendar day.
type DayXP struct {
	Date string `json:"date"`
	XP   int    `json:"xp"`
}

// Dashboard bundles what a home screen needs in one read.
type Dashboard struct {
	User              User             `json:"user"`
	Stats             Stats            `json:"stats"`
	TodayTasks        []Task           `json:"today_tasks"`
	RecentCompletions []TaskCompletion `json:"recent_completions"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
