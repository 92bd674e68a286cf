package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JamesPrial/liferpg/internal/engine"
)

var errAbort = errors.New("abort")

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 123456789, time.UTC)

// runStoreSuite exercises the engine.Store contract against any backend.
func runStoreSuite(t *testing.T, open func(t *testing.T) engine.Store) {
	t.Run("users", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		u := &engine.User{Name: "alice", CreatedAt: t0}
		mustTx(t, s, func(tx engine.Tx) error { return tx.CreateUser(u) })
		if u.ID == 0 {
			t.Fatal("CreateUser did not assign an id")
		}

		err := s.InTx(ctx, func(tx engine.Tx) error {
			return tx.CreateUser(&engine.User{Name: "alice", CreatedAt: t0})
		})
		if !errors.Is(err, engine.ErrValidation) {
			t.Fatalf("duplicate user err = %v, want ErrValidation", err)
		}

		mustTx(t, s, func(tx engine.Tx) error { return tx.SetUserXP(u.ID, 250) })
		mustTx(t, s, func(tx engine.Tx) error {
			got, err := tx.GetUserByName("alice")
			if err != nil {
				return err
			}
			if got.ID != u.ID || got.TotalXP != 250 || !got.CreatedAt.Equal(t0) {
				t.Errorf("GetUserByName = %+v", got)
			}
			return nil
		})

		err = s.InTx(ctx, func(tx engine.Tx) error {
			_, err := tx.GetUser(999)
			return err
		})
		var nf *engine.NotFoundError
		if !errors.As(err, &nf) || nf.Kind != "user" {
			t.Fatalf("GetUser(999) err = %v, want user NotFoundError", err)
		}
	})

	t.Run("categories", func(t *testing.T) {
		s := open(t)

		c := &engine.Category{Name: "Health", Icon: "fitness", Color: "#4CAF50", BaseXP: 15}
		mustTx(t, s, func(tx engine.Tx) error { return tx.CreateCategory(c) })
		mustTx(t, s, func(tx engine.Tx) error {
			return tx.CreateCategory(&engine.Category{Name: "Home", BaseXP: 10})
		})

		err := s.InTx(context.Background(), func(tx engine.Tx) error {
			return tx.CreateCategory(&engine.Category{Name: "Health", BaseXP: 1})
		})
		if !errors.Is(err, engine.ErrValidation) {
			t.Fatalf("duplicate category err = %v, want ErrValidation", err)
		}

		mustTx(t, s, func(tx engine.Tx) error {
			got, err := tx.GetCategory(c.ID)
			if err != nil {
				return err
			}
			if *got != *c {
				t.Errorf("GetCategory = %+v, want %+v", got, c)
			}
			all, err := tx.ListCategories()
			if err != nil {
				return err
			}
			if len(all) != 2 || all[0].Name != "Health" || all[1].Name != "Home" {
				t.Errorf("ListCategories = %+v", all)
			}
			if _, err := tx.GetCategory(404); !errors.Is(err, engine.ErrNotFound) {
				t.Errorf("GetCategory(404) err = %v", err)
			}
			return nil
		})
	})

	t.Run("tasks round trip", func(t *testing.T) {
		s := open(t)
		u, c := seedUserAndCategory(t, s)

		due := t0.Add(24 * time.Hour)
		task := &engine.Task{
			UserID: u.ID, CategoryID: c.ID, Title: "Run 5k", Description: "easy pace",
			Frequency: engine.FrequencyDaily, Status: engine.StatusPending,
			XPReward: 15, Difficulty: engine.DifficultyHard,
			DueDate: &due, IsActive: true, CreatedAt: t0,
		}
		mustTx(t, s, func(tx engine.Tx) error { return tx.CreateTask(task) })
		if task.ID == 0 {
			t.Fatal("CreateTask did not assign an id")
		}

		last := t0.Add(time.Hour)
		task.Status = engine.StatusInProgress
		task.CurrentStreak, task.BestStreak = 2, 5
		task.LastCompleted = &last
		task.DueDate = nil
		task.IsActive = false
		mustTx(t, s, func(tx engine.Tx) error { return tx.UpdateTask(task) })

		mustTx(t, s, func(tx engine.Tx) error {
			got, err := tx.GetTask(task.ID)
			if err != nil {
				return err
			}
			if got.Title != "Run 5k" || got.Description != "easy pace" || got.Frequency != engine.FrequencyDaily ||
				got.Status != engine.StatusInProgress || got.XPReward != 15 || got.Difficulty != engine.DifficultyHard ||
				got.CurrentStreak != 2 || got.BestStreak != 5 || got.IsActive {
				t.Errorf("GetTask = %+v", got)
			}
			if got.DueDate != nil {
				t.Errorf("due date = %v, want nil", got.DueDate)
			}
			if got.LastCompleted == nil || !got.LastCompleted.Equal(last) {
				t.Errorf("last completed = %v, want %v", got.LastCompleted, last)
			}
			if !got.CreatedAt.Equal(t0) {
				t.Errorf("created at = %v, want %v", got.CreatedAt, t0)
			}

			list, err := tx.ListTasks(u.ID)
			if err != nil {
				return err
			}
			if len(list) != 1 || list[0].ID != task.ID {
				t.Errorf("ListTasks = %+v", list)
			}
			other, err := tx.ListTasks(u.ID + 100)
			if err != nil {
				return err
			}
			if len(other) != 0 {
				t.Errorf("ListTasks(other) = %+v, want empty", other)
			}
			return nil
		})
	})

	t.Run("completions", func(t *testing.T) {
		s := open(t)
		u, cat := seedUserAndCategory(t, s)
		task := &engine.Task{UserID: u.ID, CategoryID: cat.ID, Title: "t", Frequency: engine.FrequencyDaily,
			Status: engine.StatusPending, XPReward: 10, Difficulty: 1, IsActive: true, CreatedAt: t0}
		mustTx(t, s, func(tx engine.Tx) error { return tx.CreateTask(task) })

		lvl := 2
		for i, at := range []time.Time{t0.Add(2 * time.Hour), t0, t0.Add(time.Hour)} {
			c := &engine.TaskCompletion{TaskID: task.ID, UserID: u.ID, CompletedAt: at, XPEarned: 10 + i}
			if i == 0 {
				c.LevelUp, c.NewLevel = true, &lvl
			}
			mustTx(t, s, func(tx engine.Tx) error { return tx.AppendCompletion(c) })
			if c.ID == 0 {
				t.Fatal("AppendCompletion did not assign an id")
			}
		}

		mustTx(t, s, func(tx engine.Tx) error {
			n, err := tx.CountCompletions(u.ID)
			if err != nil {
				return err
			}
			if n != 3 {
				t.Errorf("CountCompletions = %d, want 3", n)
			}

			got, err := tx.ListCompletions(u.ID, t0.Add(30*time.Minute))
			if err != nil {
				return err
			}
			if len(got) != 2 {
				t.Fatalf("ListCompletions len = %d, want 2", len(got))
			}
			if !got[0].CompletedAt.Equal(t0.Add(time.Hour)) || !got[1].CompletedAt.Equal(t0.Add(2*time.Hour)) {
				t.Errorf("completions not ordered by time: %v, %v", got[0].CompletedAt, got[1].CompletedAt)
			}
			if !got[1].LevelUp || got[1].NewLevel == nil || *got[1].NewLevel != 2 {
				t.Errorf("level up fields lost: %+v", got[1])
			}
			if got[0].LevelUp || got[0].NewLevel != nil {
				t.Errorf("unexpected level up: %+v", got[0])
			}
			return nil
		})
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		s := open(t)
		u, _ := seedUserAndCategory(t, s)

		err := s.InTx(context.Background(), func(tx engine.Tx) error {
			if err := tx.SetUserXP(u.ID, 9000); err != nil {
				return err
			}
			if err := tx.CreateUser(&engine.User{Name: "ghost", CreatedAt: t0}); err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("InTx err = %v, want errAbort", err)
		}

		mustTx(t, s, func(tx engine.Tx) error {
			got, err := tx.GetUser(u.ID)
			if err != nil {
				return err
			}
			if got.TotalXP != 0 {
				t.Errorf("total xp = %d after rollback, want 0", got.TotalXP)
			}
			if _, err := tx.GetUserByName("ghost"); !errors.Is(err, engine.ErrNotFound) {
				t.Errorf("ghost user survived rollback: %v", err)
			}
			return nil
		})
	})
}

// runSharedStoreTest drives two store instances over the same data, as two
// processes would, and checks that no completion or XP is lost and that a
// one-off task is completed once.
func runSharedStoreTest(t *testing.T, openPair func(t *testing.T) (engine.Store, engine.Store)) {
	const tasks, reward = 20, 10

	a, b := openPair(t)
	ctx := context.Background()
	svcA, svcB := engine.NewService(a), engine.NewService(b)

	user, err := svcA.CreateUser(ctx, "racer")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cat, err := svcA.CreateCategory(ctx, engine.Category{Name: "Chores", BaseXP: reward})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	ids := make([]int64, 0, tasks)
	for i := 0; i < tasks; i++ {
		task, err := svcA.CreateTask(ctx, user.ID, engine.CreateTaskInput{
			Title: fmt.Sprintf("chore %d", i), CategoryID: cat.ID, Frequency: engine.FrequencyOnce,
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		ids = append(ids, task.ID)
	}

	// Both instances race to complete every task.
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for _, id := range ids {
		for _, svc := range []*engine.Service{svcA, svcB} {
			wg.Add(1)
			go func(svc *engine.Service, id int64) {
				defer wg.Done()
				_, err := svc.CompleteTask(ctx, user.ID, id)
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, engine.ErrInvalidTransition):
					rejected.Add(1)
				default:
					t.Errorf("CompleteTask(%d): %v", id, err)
				}
			}(svc, id)
		}
	}
	wg.Wait()

	if got := succeeded.Load(); got != tasks {
		t.Errorf("%d completions succeeded, want %d", got, tasks)
	}
	if got := rejected.Load(); got != tasks {
		t.Errorf("%d completions rejected, want %d", got, tasks)
	}
	for _, svc := range []*engine.Service{svcA, svcB} {
		st, err := svc.GetStats(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetStats: %v", err)
		}
		if st.TotalXP != tasks*reward || st.TasksCompleted != tasks {
			t.Errorf("stats = total_xp %d, completions %d; want %d, %d", st.TotalXP, st.TasksCompleted, tasks*reward, tasks)
		}
	}
}

func mustTx(t *testing.T, s engine.Store, fn func(tx engine.Tx) error) {
	t.Helper()
	if err := s.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func seedUserAndCategory(t *testing.T, s engine.Store) (*engine.User, *engine.Category) {
	t.Helper()
	u := &engine.User{Name: "main", CreatedAt: t0}
	c := &engine.Category{Name: "Habits", BaseXP: 10}
	mustTx(t, s, func(tx engine.Tx) error {
		if err := tx.CreateUser(u); err != nil {
			return err
		}
		return tx.CreateCategory(c)
	})
	return u, c
}
