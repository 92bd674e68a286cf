package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// timeLayout stores instants as fixed-width UTC text so that lexical order is
// chronological in both SQLite and PostgreSQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullableTime returns nil for a missing instant so it is stored as NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// row is satisfied by both *sql.Row and pgx.Row.
type row interface {
	Scan(dest ...any) error
}

// rows is the common subset of *sql.Rows and pgx.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// querier runs statements inside one driver transaction. Queries use '?'
// placeholders; the dialect rewrites them when needed.
type querier interface {
	exec(query string, args ...any) error
	queryRow(query string, args ...any) row
	query(query string, args ...any) (rows, func(), error)
}

// dialect captures the differences between the SQL backends.
type dialect struct {
	name     string
	isNoRows func(error) bool
	isUnique func(error) bool
	// lockUser is appended to the user lookup so concurrent transactions
	// for one user queue behind each other. Empty when the backend already
	// serializes writers.
	lockUser string
}

// rebindDollar rewrites '?' placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlTx implements engine.Tx on top of a querier.
type sqlTx struct {
	q querier
	d dialect
}

var _ engine.Tx = (*sqlTx)(nil)

func (t *sqlTx) notFound(err error, kind string, id string) error {
	if t.d.isNoRows(err) {
		return &engine.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
}

func (t *sqlTx) insertErr(err error, what, field string) error {
	if t.d.isUnique(err) {
		return &engine.ValidationError{Field: field, Reason: fmt.Sprintf("%s already exists", what)}
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

const userColumns = `id, name, total_xp, created_at`

func scanUser(r row) (*engine.User, error) {
	var (
		u       engine.User
		created string
	)
	if err := r.Scan(&u.ID, &u.Name, &u.TotalXP, &created); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *sqlTx) CreateUser(u *engine.User) error {
	err := t.q.queryRow(
		`INSERT INTO users (name, total_xp, created_at) VALUES (?, ?, ?) RETURNING id`,
		u.Name, u.TotalXP, formatTime(u.CreatedAt),
	).Scan(&u.ID)
	if err != nil {
		return t.insertErr(err, "user "+strconv.Quote(u.Name), "name")
	}
	return nil
}

func (t *sqlTx) GetUser(id int64) (*engine.User, error) {
	u, err := scanUser(t.q.queryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`+t.d.lockUser, id))
	if err != nil {
		return nil, t.notFound(err, "user", strconv.FormatInt(id, 10))
	}
	return u, nil
}

func (t *sqlTx) GetUserByName(name string) (*engine.User, error) {
	u, err := scanUser(t.q.queryRow(`SELECT `+userColumns+` FROM users WHERE name = ?`, name))
	if err != nil {
		return nil, t.notFound(err, "user", strconv.Quote(name))
	}
	return u, nil
}

func (t *sqlTx) SetUserXP(id int64, totalXP int) error {
	if err := t.q.exec(`UPDATE users SET total_xp = ? WHERE id = ?`, totalXP, id); err != nil {
		return fmt.Errorf("failed to update xp of user %d: %w", id, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

const categoryColumns = `id, name, description, icon, color, base_xp`

func scanCategory(r row) (*engine.Category, error) {
	var c engine.Category
	if err := r.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.Color, &c.BaseXP); err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *sqlTx) CreateCategory(c *engine.Category) error {
	err := t.q.queryRow(
		`INSERT INTO categories (name, description, icon, color, base_xp) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		c.Name, c.Description, c.Icon, c.Color, c.BaseXP,
	).Scan(&c.ID)
	if err != nil {
		return t.insertErr(err, "category "+strconv.Quote(c.Name), "name")
	}
	return nil
}

func (t *sqlTx) GetCategory(id int64) (*engine.Category, error) {
	c, err := scanCategory(t.q.queryRow(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return nil, t.notFound(err, "category", strconv.FormatInt(id, 10))
	}
	return c, nil
}

func (t *sqlTx) ListCategories() ([]engine.Category, error) {
	rs, done, err := t.q.query(`SELECT ` + categoryColumns + ` FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer done()

	result := make([]engine.Category, 0)
	for rs.Next() {
		c, err := scanCategory(rs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		result = append(result, *c)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

const taskColumns = `id, user_id, category_id, title, description, frequency, status,
	xp_reward, difficulty, current_streak, best_streak, due_date, last_completed,
	is_active, created_at`

func scanTask(r row) (*engine.Task, error) {
	var (
		task         engine.Task
		due, last    *string
		created      string
		freq, status string
		difficulty   int
	)
	if err := r.Scan(
		&task.ID, &task.UserID, &task.CategoryID, &task.Title, &task.Description,
		&freq, &status, &task.XPReward, &difficulty,
		&task.CurrentStreak, &task.BestStreak, &due, &last,
		&task.IsActive, &created,
	); err != nil {
		return nil, err
	}
	task.Frequency = engine.Frequency(freq)
	task.Status = engine.Status(status)
	task.Difficulty = engine.Difficulty(difficulty)

	var err error
	if task.DueDate, err = parseTimePtr(due); err != nil {
		return nil, err
	}
	if task.LastCompleted, err = parseTimePtr(last); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *sqlTx) CreateTask(task *engine.Task) error {
	err := t.q.queryRow(
		`INSERT INTO tasks (user_id, category_id, title, description, frequency, status,
		    xp_reward, difficulty, current_streak, best_streak, due_date, last_completed,
		    is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		task.UserID, task.CategoryID, task.Title, task.Description,
		string(task.Frequency), string(task.Status),
		task.XPReward, int(task.Difficulty), task.CurrentStreak, task.BestStreak,
		nullableTime(task.DueDate), nullableTime(task.LastCompleted),
		task.IsActive, formatTime(task.CreatedAt),
	).Scan(&task.ID)
	if err != nil {
		return t.insertErr(err, "task", "task")
	}
	return nil
}

func (t *sqlTx) GetTask(id int64) (*engine.Task, error) {
	task, err := scanTask(t.q.queryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, t.notFound(err, "task", strconv.FormatInt(id, 10))
	}
	return task, nil
}

func (t *sqlTx) UpdateTask(task *engine.Task) error {
	err := t.q.exec(
		`UPDATE tasks SET category_id = ?, title = ?, description = ?, frequency = ?,
		    status = ?, xp_reward = ?, difficulty = ?, current_streak = ?, best_streak = ?,
		    due_date = ?, last_completed = ?, is_active = ?
		 WHERE id = ?`,
		task.CategoryID, task.Title, task.Description, string(task.Frequency),
		string(task.Status), task.XPReward, int(task.Difficulty),
		task.CurrentStreak, task.BestStreak,
		nullableTime(task.DueDate), nullableTime(task.LastCompleted), task.IsActive,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	return nil
}

func (t *sqlTx) ListTasks(userID int64) ([]engine.Task, error) {
	rs, done, err := t.q.query(`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer done()

	result := make([]engine.Task, 0)
	for rs.Next() {
		task, err := scanTask(rs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		result = append(result, *task)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Completions
// ---------------------------------------------------------------------------

func (t *sqlTx) AppendCompletion(c *engine.TaskCompletion) error {
	err := t.q.queryRow(
		`INSERT INTO task_completions (task_id, user_id, completed_at, xp_earned, streak_bonus, level_up, new_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.TaskID, c.UserID, formatTime(c.CompletedAt), c.XPEarned, c.StreakBonus, c.LevelUp, nullableInt(c.NewLevel),
	).Scan(&c.ID)
	if err != nil {
		return t.insertErr(err, "completion", "completion")
	}
	return nil
}

func (t *sqlTx) ListCompletions(userID int64, since time.Time) ([]engine.TaskCompletion, error) {
	rs, done, err := t.q.query(
		`SELECT id, task_id, user_id, completed_at, xp_earned, streak_bonus, level_up, new_level
		 FROM task_completions
		 WHERE user_id = ? AND completed_at >= ?
		 ORDER BY completed_at, id`,
		userID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer done()

	result := make([]engine.TaskCompletion, 0)
	for rs.Next() {
		var (
			c  engine.TaskCompletion
			at string
		)
		if err := rs.Scan(&c.ID, &c.TaskID, &c.UserID, &at, &c.XPEarned, &c.StreakBonus, &c.LevelUp, &c.NewLevel); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		if c.CompletedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func (t *sqlTx) CountCompletions(userID int64) (int, error) {
	var n int
	if err := t.q.queryRow(`SELECT COUNT(*) FROM task_completions WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completions: %w", err)
	}
	return n, nil
}
