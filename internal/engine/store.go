package engine

import (
	"context"
	"time"
)

// Store is a transactional persistence backend.
type Store interface {
	// InTx runs fn inside one atomic unit. If fn returns an error nothing it
	// wrote is kept. Transactions that load the same user must not
	// interleave, including across processes sharing the backend.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of reads and writes available inside a transaction. Lookups
// of missing rows return a *NotFoundError. Unique violations are reported as
// a *ValidationError.
type Tx interface {
	CreateUser(u *User) error
	GetUser(id int64) (*User, error)
	GetUserByName(name string) (*User, error)
	SetUserXP(id int64, totalXP int) error

	CreateCategory(c *Category) error
	GetCategory(id int64) (*Category, error)
	ListCategories() ([]Category, error)

	CreateTask(t *Task) error
	GetTask(id int64) (*Task, error)
	UpdateTask(t *Task) error
	// ListTasks returns every task of the user, inactive ones included,
	// ordered by id.
	ListTasks(userID int64) ([]Task, error)

	AppendCompletion(c *TaskCompletion) error
	// ListCompletions returns the user's completions at or after since,
	// oldest first.
	ListCompletions(userID int64, since time.Time) ([]TaskCompletion, error)
	CountCompletions(userID int64) (int, error)
}
