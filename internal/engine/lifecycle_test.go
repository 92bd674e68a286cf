package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

var testCategory = &Category{ID: 3, Name: "Learning", BaseXP: 25}

func newDailyTask(t *testing.T, reward int) *Task {
	t.Helper()
	task, err := NewTask(1, CreateTaskInput{Title: "Read", CategoryID: 3, Frequency: FrequencyDaily, XPReward: reward}, testCategory, day0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	task.ID = 42
	return task
}

// ---------------------------------------------------------------------------
// NewTask
// ---------------------------------------------------------------------------

func Test_NewTask_Defaults(t *testing.T) {
	t.Parallel()

	task, err := NewTask(7, CreateTaskInput{Title: "  Stretch  ", CategoryID: 3, Frequency: FrequencyWeekly}, testCategory, day0)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if task.Title != "Stretch" {
		t.Errorf("title = %q, want trimmed", task.Title)
	}
	if task.Status != StatusPending || task.CurrentStreak != 0 || task.BestStreak != 0 || !task.IsActive {
		t.Errorf("unexpected initial state: %+v", task)
	}
	if task.XPReward != 25 {
		t.Errorf("xp_reward = %d, want category base 25", task.XPReward)
	}
	if task.Difficulty != DifficultyNormal {
		t.Errorf("difficulty = %d, want %d", task.Difficulty, DifficultyNormal)
	}
	if task.UserID != 7 || task.CategoryID != 3 {
		t.Errorf("owner/category = %d/%d, want 7/3", task.UserID, task.CategoryID)
	}
}

func Test_NewTask_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    CreateTaskInput
		cat   *Category
		field string
	}{
		{"empty title", CreateTaskInput{Title: "  ", Frequency: FrequencyDaily}, testCategory, "title"},
		{"unknown frequency", CreateTaskInput{Title: "x", Frequency: "hourly"}, testCategory, "frequency"},
		{"missing category", CreateTaskInput{Title: "x", Frequency: FrequencyDaily, CategoryID: 99}, nil, "category_id"},
		{"negative reward", CreateTaskInput{Title: "x", Frequency: FrequencyDaily, XPReward: -1}, testCategory, "xp_reward"},
		{"difficulty out of range", CreateTaskInput{Title: "x", Frequency: FrequencyDaily, Difficulty: 4}, testCategory, "difficulty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTask(1, tt.in, tt.cat, day0)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("errors.Is(err, ErrValidation) = false")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Start
// ---------------------------------------------------------------------------

func Test_Start(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	if err := Start(task); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if task.Status != StatusInProgress {
		t.Fatalf("status = %q, want in_progress", task.Status)
	}

	err := Start(task)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start err = %v, want ErrInvalidTransition", err)
	}

	task.Status = StatusCompleted
	if err := Start(task); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Start from completed err = %v, want ErrInvalidTransition", err)
	}
}

func Test_Start_Inactive(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	task.IsActive = false
	err := Start(task)
	if !errors.Is(err, ErrInactiveTask) || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want inactive task that is also an invalid transition", err)
	}
	if task.Status != StatusPending {
		t.Errorf("status changed to %q", task.Status)
	}
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

func Test_Complete_DailyScenario(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)

	d, err := Complete(task, day0)
	if err != nil {
		t.Fatalf("complete day 0: %v", err)
	}
	if task.CurrentStreak != 1 || d.XPEarned != 10 || d.StreakBonus != 0 {
		t.Errorf("day 0: streak=%d xp=%d bonus=%d, want 1/10/0", task.CurrentStreak, d.XPEarned, d.StreakBonus)
	}
	if task.Status != StatusPending || !task.DueDate.Equal(day0.AddDate(0, 0, 1)) {
		t.Errorf("day 0: status=%q due=%v", task.Status, task.DueDate)
	}

	day1 := day0.AddDate(0, 0, 1)
	d, err = Complete(task, day1)
	if err != nil {
		t.Fatalf("complete day 1: %v", err)
	}
	if task.CurrentStreak != 2 || task.BestStreak != 2 {
		t.Errorf("day 1: streak=%d best=%d, want 2/2", task.CurrentStreak, task.BestStreak)
	}
	if d.StreakBonus != 10*StreakBonusPercent(2)/100 || d.XPEarned != 10+d.StreakBonus {
		t.Errorf("day 1: bonus=%d xp=%d", d.StreakBonus, d.XPEarned)
	}
	if !task.DueDate.Equal(day0.AddDate(0, 0, 2)) {
		t.Errorf("day 1: due = %v", task.DueDate)
	}

	day5 := day0.AddDate(0, 0, 5)
	if _, err := Complete(task, day5); err != nil {
		t.Fatalf("complete day 5: %v", err)
	}
	if task.CurrentStreak != 1 || task.BestStreak != 2 {
		t.Errorf("day 5: streak=%d best=%d, want 1/2", task.CurrentStreak, task.BestStreak)
	}
	if !task.LastCompleted.Equal(day5) {
		t.Errorf("last_completed = %v, want %v", task.LastCompleted, day5)
	}
}

func Test_Complete_FromInProgress(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	if err := Start(task); err != nil {
		t.Fatal(err)
	}
	if _, err := Complete(task, day0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("status = %q, want pending after reopen", task.Status)
	}
}

func Test_Complete_Once(t *testing.T) {
	t.Parallel()

	due := day0.Add(time.Hour)
	task, err := NewTask(1, CreateTaskInput{Title: "File taxes", CategoryID: 3, Frequency: FrequencyOnce, DueDate: &due}, testCategory, day0)
	if err != nil {
		t.Fatal(err)
	}
	d, err := Complete(task, day0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Status != StatusCompleted || task.DueDate != nil || task.CurrentStreak != 0 {
		t.Errorf("once task after complete: %+v", task)
	}
	if d.XPEarned != 25 || d.StreakBonus != 0 {
		t.Errorf("xp=%d bonus=%d, want 25/0", d.XPEarned, d.StreakBonus)
	}
}

func Test_Complete_CompletedHasNoEffect(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	task.Status = StatusCompleted
	task.CurrentStreak, task.BestStreak = 3, 4
	last := day0.Add(-time.Hour)
	task.LastCompleted = &last
	before := task.Clone()

	_, err := Complete(task, day0)
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusCompleted {
		t.Fatalf("err = %v, want TransitionError from completed", err)
	}
	if !reflect.DeepEqual(task, before) {
		t.Errorf("task mutated on failed complete:\n got %+v\nwant %+v", task, before)
	}
}

func Test_Complete_Inactive(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	if err := Deactivate(task); err != nil {
		t.Fatal(err)
	}
	if _, err := Complete(task, day0); !errors.Is(err, ErrInactiveTask) {
		t.Fatalf("err = %v, want ErrInactiveTask", err)
	}
	if err := Deactivate(task); !errors.Is(err, ErrInactiveTask) {
		t.Fatalf("second Deactivate err = %v, want ErrInactiveTask", err)
	}
}

func Test_Complete_DifficultyMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		difficulty Difficulty
		want       int
	}{
		{DifficultyNormal, 15},
		{DifficultyHard, 22},
		{DifficultyVeryHard, 30},
	}
	for _, tt := range tests {
		task, err := NewTask(1, CreateTaskInput{Title: "Run", CategoryID: 3, Frequency: FrequencyOnce, XPReward: 15, Difficulty: tt.difficulty}, testCategory, day0)
		if err != nil {
			t.Fatal(err)
		}
		d, err := Complete(task, day0)
		if err != nil {
			t.Fatal(err)
		}
		if d.XPEarned != tt.want {
			t.Errorf("difficulty %d: xp = %d, want %d", tt.difficulty, d.XPEarned, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// ApplyPatch
// ---------------------------------------------------------------------------

func Test_ApplyPatch(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	title := "Read 20 pages"
	reward := 40
	weekly := FrequencyWeekly
	other := &Category{ID: 8, Name: "Mindfulness", BaseXP: 15}
	catID := other.ID

	err := ApplyPatch(task, TaskPatch{Title: &title, XPReward: &reward, Frequency: &weekly, CategoryID: &catID}, other)
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if task.Title != title || task.XPReward != 40 || task.Frequency != FrequencyWeekly || task.CategoryID != 8 {
		t.Errorf("patch not applied: %+v", task)
	}
}

func Test_ApplyPatch_RejectsWithoutPartialEffects(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	before := task.Clone()
	title := "new title"
	zero := 0

	err := ApplyPatch(task, TaskPatch{Title: &title, XPReward: &zero}, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !reflect.DeepEqual(task, before) {
		t.Errorf("task mutated on rejected patch")
	}

	task.IsActive = false
	if err := ApplyPatch(task, TaskPatch{Title: &title}, nil); !errors.Is(err, ErrInactiveTask) {
		t.Fatalf("err = %v, want ErrInactiveTask", err)
	}
}

func Test_ApplyPatch_FrequencyChangeOnCompletedTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		freq       Frequency
		wantStatus Status
	}{
		{name: "once to daily reopens", freq: FrequencyDaily, wantStatus: StatusPending},
		{name: "once to monthly reopens", freq: FrequencyMonthly, wantStatus: StatusPending},
		{name: "once to once stays completed", freq: FrequencyOnce, wantStatus: StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task, err := NewTask(1, CreateTaskInput{Title: "Clean garage", CategoryID: 3, Frequency: FrequencyOnce}, testCategory, day0)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := Complete(task, day0); err != nil {
				t.Fatalf("Complete: %v", err)
			}

			freq := tt.freq
			if err := ApplyPatch(task, TaskPatch{Frequency: &freq}, nil); err != nil {
				t.Fatalf("ApplyPatch: %v", err)
			}
			if task.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q", task.Status, tt.wantStatus)
			}

			_, err = Complete(task, day0.Add(24*time.Hour))
			if tt.wantStatus == StatusPending && err != nil {
				t.Errorf("reopened task cannot be completed: %v", err)
			}
			if tt.wantStatus == StatusCompleted && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func Test_ApplyPatch_RecurringToOnceKeepsStatus(t *testing.T) {
	t.Parallel()

	task := newDailyTask(t, 10)
	if err := Start(task); err != nil {
		t.Fatal(err)
	}
	task.CurrentStreak, task.BestStreak = 4, 6

	once := FrequencyOnce
	if err := ApplyPatch(task, TaskPatch{Frequency: &once}, nil); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if task.Status != StatusInProgress || task.CurrentStreak != 0 || task.BestStreak != 6 {
		t.Errorf("after switching to once: status=%q streak=%d best=%d", task.Status, task.CurrentStreak, task.BestStreak)
	}
	if _, err := Complete(task, day0); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", task.Status)
	}
}

// ---------------------------------------------------------------------------
// ApplyCompletion
// ---------------------------------------------------------------------------

func Test_ApplyCompletion_LevelUp(t *testing.T) {
	t.Parallel()

	u := &User{ID: 1, TotalXP: 95}
	c := ApplyCompletion(u, CompletionDraft{TaskID: 9, CompletedAt: day0, XPEarned: 10})
	if u.TotalXP != 105 {
		t.Errorf("total = %d, want 105", u.TotalXP)
	}
	if !c.LevelUp || c.NewLevel == nil || *c.NewLevel != 2 {
		t.Errorf("completion = %+v, want level up to 2", c)
	}
	if c.TaskID != 9 || c.UserID != 1 || c.XPEarned != 10 || !c.CompletedAt.Equal(day0) {
		t.Errorf("completion fields not copied: %+v", c)
	}
}

func Test_ApplyCompletion_NoLevelUp(t *testing.T) {
	t.Parallel()

	u := &User{ID: 1, TotalXP: 10}
	c := ApplyCompletion(u, CompletionDraft{XPEarned: 5, StreakBonus: 1})
	if c.LevelUp || c.NewLevel != nil {
		t.Errorf("unexpected level up: %+v", c)
	}
	if u.TotalXP != 15 || c.StreakBonus != 1 {
		t.Errorf("total=%d bonus=%d", u.TotalXP, c.StreakBonus)
	}
}

func Test_ParseFrequency(t *testing.T) {
	t.Parallel()

	if f, err := ParseFrequency(" Weekly "); err != nil || f != FrequencyWeekly {
		t.Errorf("ParseFrequency(Weekly) = %q, %v", f, err)
	}
	if _, err := ParseFrequency("yearly"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseFrequency(yearly) err = %v, want ErrValidation", err)
	}
}

func Test_ParseDueDate(t *testing.T) {
	t.Parallel()
	berlin := time.FixedZone("CET", 60*60)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"date only", "2025-03-10", time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2025-03-10T12:30:00+02:00", time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), false},
		{"padded", " 2025-03-10 ", time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC), false},
		{"garbage", "next tuesday", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDueDate(tt.input, berlin)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("ParseDueDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
