package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// jsonFormatVersion is written into every snapshot.
const jsonFormatVersion = 1

// lockRetryDelay is how often a blocked transaction retries the file lock.
const lockRetryDelay = 10 * time.Millisecond

// snapshot is the on-disk document of the JSON store.
type snapshot struct {
	Version     int                     `json:"version"`
	NextIDs     nextIDs                 `json:"next_ids"`
	Users       []engine.User           `json:"users"`
	Categories  []engine.Category       `json:"categories"`
	Tasks       []engine.Task           `json:"tasks"`
	Completions []engine.TaskCompletion `json:"completions"`
}

type nextIDs struct {
	User       int64 `json:"user"`
	Category   int64 `json:"category"`
	Task       int64 `json:"task"`
	Completion int64 `json:"completion"`
}

func next(counter *int64) int64 {
	*counter++
	return *counter
}

// JSONStore implements engine.Store using a single JSON file.
//
// Every transaction reads the whole document, applies its changes in memory
// and replaces the file atomically on success. A failed transaction writes
// nothing. Transactions are serialized across processes by an exclusive
// lock on "<Path>.lock".
type JSONStore struct {
	// Path is the absolute path to the JSON data file.
	Path string

	mu sync.Mutex
}

var _ engine.Store = (*JSONStore)(nil)

// NewJSONStore creates a JSONStore for the given file path. The file and its
// parent directories are created on the first write.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{Path: path}
}

// InTx runs fn against an in-memory copy of the document and persists it if
// fn succeeds and changed anything.
func (s *JSONStore) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	tx := &jsonTx{snap: snap}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.save(snap)
}

// lock takes the cross-process file lock, waiting until ctx is done.
func (s *JSONStore) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	fl := flock.New(s.Path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", s.Path, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", s.Path)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Close is a no-op; the store holds no open handles between transactions.
func (s *JSONStore) Close() error { return nil }

// load reads the document. A missing or empty file is an empty store; a file
// that does not parse is an error so that data is never silently discarded.
func (s *JSONStore) load() (*snapshot, error) {
	snap := &snapshot{Version: jsonFormatVersion}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	if snap.Version > jsonFormatVersion {
		return nil, fmt.Errorf("%s has format version %d, newer than supported %d", s.Path, snap.Version, jsonFormatVersion)
	}
	snap.Version = jsonFormatVersion
	return snap, nil
}

// save writes the document to a temp file in the same directory and renames
// it over the target.
func (s *JSONStore) save(snap *snapshot) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	data = append(data, '\n')

	tmpFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

// jsonTx implements engine.Tx on a loaded snapshot.
type jsonTx struct {
	snap  *snapshot
	dirty bool
}

var _ engine.Tx = (*jsonTx)(nil)

func (t *jsonTx) CreateUser(u *engine.User) error {
	for _, existing := range t.snap.Users {
		if existing.Name == u.Name {
			return &engine.ValidationError{Field: "name", Reason: fmt.Sprintf("user %q already exists", u.Name)}
		}
	}
	u.ID = next(&t.snap.NextIDs.User)
	t.snap.Users = append(t.snap.Users, *u)
	t.dirty = true
	return nil
}

func (t *jsonTx) GetUser(id int64) (*engine.User, error) {
	for _, u := range t.snap.Users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, engine.NotFoundID("user", id)
}

func (t *jsonTx) GetUserByName(name string) (*engine.User, error) {
	for _, u := range t.snap.Users {
		if u.Name == name {
			return &u, nil
		}
	}
	return nil, &engine.NotFoundError{Kind: "user", ID: strconv.Quote(name)}
}

func (t *jsonTx) SetUserXP(id int64, totalXP int) error {
	for i := range t.snap.Users {
		if t.snap.Users[i].ID == id {
			t.snap.Users[i].TotalXP = totalXP
			t.dirty = true
			return nil
		}
	}
	return engine.NotFoundID("user", id)
}

func (t *jsonTx) CreateCategory(c *engine.Category) error {
	for _, existing := range t.snap.Categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return &engine.ValidationError{Field: "name", Reason: fmt.Sprintf("category %q already exists", c.Name)}
		}
	}
	c.ID = next(&t.snap.NextIDs.Category)
	t.snap.Categories = append(t.snap.Categories, *c)
	t.dirty = true
	return nil
}

func (t *jsonTx) GetCategory(id int64) (*engine.Category, error) {
	for _, c := range t.snap.Categories {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, engine.NotFoundID("category", id)
}

func (t *jsonTx) ListCategories() ([]engine.Category, error) {
	out := make([]engine.Category, len(t.snap.Categories))
	copy(out, t.snap.Categories)
	return out, nil
}

func (t *jsonTx) CreateTask(task *engine.Task) error {
	task.ID = next(&t.snap.NextIDs.Task)
	t.snap.Tasks = append(t.snap.Tasks, *task.Clone())
	t.dirty = true
	return nil
}

func (t *jsonTx) GetTask(id int64) (*engine.Task, error) {
	for i := range t.snap.Tasks {
		if t.snap.Tasks[i].ID == id {
			return t.snap.Tasks[i].Clone(), nil
		}
	}
	return nil, engine.NotFoundID("task", id)
}

func (t *jsonTx) UpdateTask(task *engine.Task) error {
	for i := range t.snap.Tasks {
		if t.snap.Tasks[i].ID == task.ID {
			t.snap.Tasks[i] = *task.Clone()
			t.dirty = true
			return nil
		}
	}
	return engine.NotFoundID("task", task.ID)
}

func (t *jsonTx) ListTasks(userID int64) ([]engine.Task, error) {
	out := make([]engine.Task, 0)
	for i := range t.snap.Tasks {
		if t.snap.Tasks[i].UserID == userID {
			out = append(out, *t.snap.Tasks[i].Clone())
		}
	}
	return out, nil
}

func (t *jsonTx) AppendCompletion(c *engine.TaskCompletion) error {
	c.ID = next(&t.snap.NextIDs.Completion)
	t.snap.Completions = append(t.snap.Completions, *c)
	t.dirty = true
	return nil
}

func (t *jsonTx) ListCompletions(userID int64, since time.Time) ([]engine.TaskCompletion, error) {
	out := make([]engine.TaskCompletion, 0)
	for _, c := range t.snap.Completions {
		if c.UserID == userID && !c.CompletedAt.Before(since) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b engine.TaskCompletion) int {
		return a.CompletedAt.Compare(b.CompletedAt)
	})
	return out, nil
}

func (t *jsonTx) CountCompletions(userID int64) (int, error) {
	n := 0
	for _, c := range t.snap.Completions {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}
