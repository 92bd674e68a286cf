package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"time"
)

// Service is the outbound surface of the engine. Every mutating call for a
// user is serialized on that user's lock and runs inside a single store
// transaction; calls for different users run in parallel.
type Service struct {
	store      Store
	now        func() time.Time
	loc        *time.Location
	logger     *log.Logger
	publishers []Publisher

	mu        sync.Mutex
	userLocks map[int64]*userLock
}

// userLock is dropped from Service.userLocks once no call holds or waits on it.
type userLock struct {
	sync.Mutex
	refs int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the operation logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher adds an event subscriber. It may be given more than once.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publishers = append(s.publishers, p)
		}
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		now:       time.Now,
		loc:       time.UTC,
		logger:    log.New(io.Discard, "", 0),
		userLocks: make(map[int64]*userLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone used for calendar days.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) lockUser(id int64) func() {
	s.mu.Lock()
	l, ok := s.userLocks[id]
	if !ok {
		l = &userLock{}
		s.userLocks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.userLocks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Service) publish(events ...Event) {
	for _, ev := range events {
		for _, p := range s.publishers {
			p.Publish(ev)
		}
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser registers a new user with zero XP.
func (s *Service) CreateUser(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	u := &User{Name: name, CreatedAt: s.clock()}
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.CreateUser(u)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Printf("created user %q (id %d)", u.Name, u.ID)
	return u, nil
}

// EnsureUser returns the user with the given name, creating it if needed.
func (s *Service) EnsureUser(ctx context.Context, name string) (*User, error) {
	u, err := s.UserByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	u, err = s.CreateUser(ctx, name)
	if errors.Is(err, ErrValidation) {
		// Lost a creation race; the user exists now.
		return s.UserByName(ctx, name)
	}
	return u, err
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	var u *User
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		u, err = tx.GetUser(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UserByName loads a user by name.
func (s *Service) UserByName(ctx context.Context, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	var u *User
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		u, err = tx.GetUserByName(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

// SeedDefaultCategories installs any default category whose name is not
// present yet and returns how many were added.
func (s *Service) SeedDefaultCategories(ctx context.Context) (int, error) {
	added := 0
	err := s.store.InTx(ctx, func(tx Tx) error {
		added = 0
		existing, err := tx.ListCategories()
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[strings.ToLower(c.Name)] = true
		}
		for _, def := range DefaultCategories {
			if have[strings.ToLower(def.Name)] {
				continue
			}
			c := def
			if err := tx.CreateCategory(&c); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed categories: %w", err)
	}
	if added > 0 {
		s.logger.Printf("seeded %d categories", added)
	}
	return added, nil
}

// CreateCategory adds a category. Names must be unique.
func (s *Service) CreateCategory(ctx context.Context, c Category) (*Category, error) {
	c.ID = 0
	if err := validateCategory(&c); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.CreateCategory(&c)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

// GetCategory loads a category by id.
func (s *Service) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c *Category
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = tx.GetCategory(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by id.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCategories()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// ownedTask loads a task and hides tasks owned by someone else.
func ownedTask(tx Tx, userID, taskID int64) (*Task, error) {
	t, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, NotFoundID("task", taskID)
	}
	return t, nil
}

// userTask loads the user and one of their tasks.
func userTask(tx Tx, userID, taskID int64) (*User, *Task, error) {
	u, err := tx.GetUser(userID)
	if err != nil {
		return nil, nil, err
	}
	t, err := ownedTask(tx, userID, taskID)
	if err != nil {
		return nil, nil, err
	}
	return u, t, nil
}

// lookupCategory returns nil without error when the category is missing, so
// the caller can report it as invalid input.
func lookupCategory(tx Tx, id int64) (*Category, error) {
	c, err := tx.GetCategory(id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// CreateTask validates in and stores a new pending task for the user.
func (s *Service) CreateTask(ctx context.Context, userID int64, in CreateTaskInput) (*Task, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	now := s.clock()
	var (
		task *Task
		user *User
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, err = tx.GetUser(userID); err != nil {
			return err
		}
		cat, err := lookupCategory(tx, in.CategoryID)
		if err != nil {
			return err
		}
		task, err = NewTask(userID, in, cat, now)
		if err != nil {
			return err
		}
		return tx.CreateTask(task)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Printf("user %d created task %d %q (%s)", userID, task.ID, task.Title, task.Frequency)
	ev := NewEvent(EventTaskCreated, now)
	ev.UserID, ev.UserName, ev.TaskID, ev.Task = userID, user.Name, task.ID, task.Clone()
	s.publish(ev)
	return task, nil
}

// GetTask loads one of the user's tasks.
func (s *Service) GetTask(ctx context.Context, userID, taskID int64) (*Task, error) {
	var t *Task
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		t, err = ownedTask(tx, userID, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Frequency       Frequency
	Status          Status
	CategoryID      int64
	IncludeInactive bool
}

func (f TaskFilter) match(t *Task) bool {
	if !t.IsActive && !f.IncludeInactive {
		return false
	}
	if f.Frequency != "" && t.Frequency != f.Frequency {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// ListTasks returns the user's tasks matching filter, ordered by id.
func (s *Service) ListTasks(ctx context.Context, userID int64, filter TaskFilter) ([]Task, error) {
	if filter.Frequency != "" && !filter.Frequency.IsValid() {
		return nil, &ValidationError{Field: "frequency", Reason: "unknown frequency " + quote(string(filter.Frequency))}
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + quote(string(filter.Status))}
	}

	all, err := s.userTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	out := make([]Task, 0, len(all))
	for i := range all {
		if filter.match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *Service) userTasks(ctx context.Context, userID int64) ([]Task, error) {
	var tasks []Task
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetUser(userID); err != nil {
			return err
		}
		var err error
		tasks, err = tx.ListTasks(userID)
		return err
	})
	return tasks, err
}

// StartTask moves a pending task to in_progress.
func (s *Service) StartTask(ctx context.Context, userID, taskID int64) (*Task, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	var (
		task *Task
		user *User
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, task, err = userTask(tx, userID, taskID); err != nil {
			return err
		}
		if err := Start(task); err != nil {
			return err
		}
		return tx.UpdateTask(task)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	s.logger.Printf("user %d started task %d", userID, taskID)
	ev := NewEvent(EventTaskStarted, s.clock())
	ev.UserID, ev.UserName, ev.TaskID, ev.Task = userID, user.Name, taskID, task.Clone()
	s.publish(ev)
	return task, nil
}

// CompletionResult is what CompleteTask reports back.
type CompletionResult struct {
	TaskCompletion
	Task     Task      `json:"task"`
	Progress LevelInfo `json:"progress"`
}

// CompleteTask runs the complete transition, records the completion and
// credits the XP to the user, all in one transaction.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID int64) (*CompletionResult, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	now := s.clock()
	var (
		res  CompletionResult
		user *User
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		user, err = tx.GetUser(userID)
		if err != nil {
			return err
		}
		task, err := ownedTask(tx, userID, taskID)
		if err != nil {
			return err
		}

		draft, err := Complete(task, now)
		if err != nil {
			return err
		}
		completion := ApplyCompletion(user, draft)

		if err := tx.UpdateTask(task); err != nil {
			return err
		}
		if err := tx.AppendCompletion(&completion); err != nil {
			return err
		}
		if err := tx.SetUserXP(user.ID, user.TotalXP); err != nil {
			return err
		}

		res = CompletionResult{TaskCompletion: completion, Task: *task, Progress: user.Progress()}
		return nil
	})
	if err != nil {
		s.logger.Printf("complete task %d for user %d rolled back: %v", taskID, userID, err)
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.logger.Printf("user %d completed task %d: +%d XP (bonus %d, streak %d)",
		userID, taskID, res.XPEarned, res.StreakBonus, res.Task.CurrentStreak)

	completion := res.TaskCompletion
	ev := NewEvent(EventTaskCompleted, now)
	ev.UserID, ev.UserName, ev.TaskID = userID, user.Name, taskID
	ev.User, ev.Task, ev.Completion = user, res.Task.Clone(), &completion
	events := []Event{ev}
	if res.LevelUp {
		s.logger.Printf("user %d reached level %d", userID, *res.NewLevel)
		lv := NewEvent(EventLevelUp, now)
		lv.UserID, lv.UserName, lv.TaskID, lv.Level = userID, user.Name, taskID, *res.NewLevel
		lv.User = user
		events = append(events, lv)
	}
	s.publish(events...)
	return &res, nil
}

// DeleteTask soft-deletes one of the user's tasks.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID int64) error {
	unlock := s.lockUser(userID)
	defer unlock()

	var user *User
	err := s.store.InTx(ctx, func(tx Tx) error {
		var (
			task *Task
			err  error
		)
		if user, task, err = userTask(tx, userID, taskID); err != nil {
			return err
		}
		if err := Deactivate(task); err != nil {
			return err
		}
		return tx.UpdateTask(task)
	})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Printf("user %d deleted task %d", userID, taskID)
	ev := NewEvent(EventTaskDeleted, s.clock())
	ev.UserID, ev.UserName, ev.TaskID = userID, user.Name, taskID
	s.publish(ev)
	return nil
}

// UpdateTask applies patch to one of the user's active tasks.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID int64, patch TaskPatch) (*Task, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	var (
		task *Task
		user *User
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, task, err = userTask(tx, userID, taskID); err != nil {
			return err
		}
		var cat *Category
		if patch.CategoryID != nil {
			if cat, err = lookupCategory(tx, *patch.CategoryID); err != nil {
				return err
			}
		}
		if err := ApplyPatch(task, patch, cat); err != nil {
			return err
		}
		return tx.UpdateTask(task)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Printf("user %d updated task %d", userID, taskID)
	ev := NewEvent(EventTaskUpdated, s.clock())
	ev.UserID, ev.UserName, ev.TaskID, ev.Task = userID, user.Name, taskID, task.Clone()
	s.publish(ev)
	return task, nil
}

// ---------------------------------------------------------------------------
// Read models
// ---------------------------------------------------------------------------

// startOfDay returns local midnight of the day containing t.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// GetTasksDueToday returns the user's active, open tasks with no due date or
// a due date on or before the end of now's local day. Overdue tasks are
// included.
func (s *Service) GetTasksDueToday(ctx context.Context, userID int64, now time.Time) ([]Task, error) {
	all, err := s.userTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks due today: %w", err)
	}
	return dueBy(all, startOfDay(now, s.loc).AddDate(0, 0, 1)), nil
}

func dueBy(tasks []Task, end time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsActive || t.Status == StatusCompleted {
			continue
		}
		if t.DueDate != nil && !t.DueDate.Before(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GetStats summarizes the user's progression.
func (s *Service) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	var (
		user  *User
		tasks []Task
		count int
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, err = tx.GetUser(userID); err != nil {
			return err
		}
		if tasks, err = tx.ListTasks(userID); err != nil {
			return err
		}
		count, err = tx.CountCompletions(userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return buildStats(user, tasks, count), nil
}

func buildStats(u *User, tasks []Task, completions int) *Stats {
	info := u.Progress()
	st := &Stats{
		Level:          info.Level,
		CurrentXP:      info.CurrentXP,
		XPToNextLevel:  info.XPToNextLevel,
		TotalXP:        info.TotalXP,
		Title:          info.Title,
		TasksCompleted: completions,
	}
	for _, t := range tasks {
		if t.IsActive {
			st.CurrentStreak = max(st.CurrentStreak, t.CurrentStreak)
		}
		st.BestStreak = max(st.BestStreak, t.BestStreak)
	}
	return st
}

// MaxHistoryDays bounds GetXPHistory.
const MaxHistoryDays = 365

// GetXPHistory returns days+1 consecutive calendar days ending today, oldest
// first, each with the XP earned that day. Days without completions are zero.
func (s *Service) GetXPHistory(ctx context.Context, userID int64, days int) ([]DayXP, error) {
	if days < 1 || days > MaxHistoryDays {
		return nil, &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d; got %d", MaxHistoryDays, days)}
	}

	first := startOfDay(s.clock(), s.loc).AddDate(0, 0, -days)
	completions, err := s.completionsSince(ctx, userID, first)
	if err != nil {
		return nil, fmt.Errorf("failed to get xp history: %w", err)
	}

	perDay := make(map[string]int, days+1)
	for _, c := range completions {
		perDay[c.CompletedAt.In(s.loc).Format(time.DateOnly)] += c.XPEarned
	}

	out := make([]DayXP, 0, days+1)
	for i := 0; i <= days; i++ {
		day := first.AddDate(0, 0, i).Format(time.DateOnly)
		out = append(out, DayXP{Date: day, XP: perDay[day]})
	}
	return out, nil
}

func (s *Service) completionsSince(ctx context.Context, userID int64, since time.Time) ([]TaskCompletion, error) {
	var out []TaskCompletion
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetUser(userID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListCompletions(userID, since.UTC())
		return err
	})
	return out, err
}

// Defaults for RecentCompletions.
const (
	DefaultHistoryDays  = 30
	DefaultHistoryLimit = 50
)

// RecentCompletions returns up to limit completions from the last days days,
// newest first. Non-positive arguments fall back to the defaults.
func (s *Service) RecentCompletions(ctx context.Context, userID int64, days, limit int) ([]TaskCompletion, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	since := s.clock().AddDate(0, 0, -days)
	out, err := s.completionsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	return newestFirst(out, limit), nil
}

// newestFirst reverses completions listed oldest first and keeps at most
// limit of them.
func newestFirst(out []TaskCompletion, limit int) []TaskCompletion {
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Dashboard window.
const (
	dashboardDays        = 7
	dashboardCompletions = 10
)

// Dashboard returns stats, today's tasks and the last week's completions.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	now := s.clock()
	var (
		user   *User
		tasks  []Task
		count  int
		recent []TaskCompletion
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if user, err = tx.GetUser(userID); err != nil {
			return err
		}
		if tasks, err = tx.ListTasks(userID); err != nil {
			return err
		}
		if count, err = tx.CountCompletions(userID); err != nil {
			return err
		}
		recent, err = tx.ListCompletions(userID, now.AddDate(0, 0, -dashboardDays))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	recent = newestFirst(recent, dashboardCompletions)
	return &Dashboard{
		User:              *user,
		Stats:             *buildStats(user, tasks, count),
		TodayTasks:        dueBy(tasks, startOfDay(now, s.loc).AddDate(0, 0, 1)),
		RecentCompletions: recent,
	}, nil
}
