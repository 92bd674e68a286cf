package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// writeConfig creates a config.yaml pointing at a fresh data directory and
// returns its path.
func writeConfig(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "data_dir: " + dir + "\nstorage:\n  backend: " + backend + "\nuser: tester\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, cfgPath string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", cfgPath}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	res := runCLI(t, cfgPath, args...)
	if res.code != 0 {
		t.Fatalf("liferpg %v exited %d\nstderr: %s", args, res.code, res.stderr)
	}
	return res.stdout
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, raw)
	}
	return v
}

// ---------------------------------------------------------------------------
// Task commands
// ---------------------------------------------------------------------------

func Test_AddAndList(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")

	out := mustRun(t, cfg, "add", "Morning", "run", "-c", "health")
	if !strings.Contains(out, `Created task 1 "Morning run" (daily, 15 XP)`) {
		t.Errorf("add output = %q", out)
	}

	tasks := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "list", "--json"))
	if len(tasks) != 1 {
		t.Fatalf("list returned %d tasks, want 1", len(tasks))
	}
	if tasks[0].Title != "Morning run" || tasks[0].CategoryID != 1 {
		t.Errorf("task = %+v", tasks[0])
	}

	text := mustRun(t, cfg, "list")
	if !strings.Contains(text, "Morning run") || !strings.Contains(text, "STREAK") {
		t.Errorf("list table = %q", text)
	}
}

func Test_Add_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown category", args: []string{"add", "x", "-c", "Chores"}, wantErr: `no category named "Chores"`},
		{name: "bad frequency", args: []string{"add", "x", "-f", "hourly"}, wantErr: "frequency"},
		{name: "bad due date", args: []string{"add", "x", "--due", "tomorrow"}, wantErr: "due_date"},
		{name: "bad difficulty", args: []string{"add", "x", "-d", "7"}, wantErr: "difficulty"},
		{name: "missing title", args: []string{"add"}, wantErr: "requires at least 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := runCLI(t, writeConfig(t, "json"), tt.args...)
			if res.code != 1 {
				t.Fatalf("exit code = %d, want 1", res.code)
			}
			if !strings.Contains(res.stderr, "Error: ") || !strings.Contains(res.stderr, tt.wantErr) {
				t.Errorf("stderr = %q, want it to contain %q", res.stderr, tt.wantErr)
			}
		})
	}
}

func Test_StartDone_OnceTask(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "sqlite")

	mustRun(t, cfg, "add", "File taxes", "-f", "once", "-c", "Finance", "-d", "2")
	if out := mustRun(t, cfg, "start", "1"); !strings.Contains(out, `Started task 1 "File taxes"`) {
		t.Errorf("start output = %q", out)
	}

	out := mustRun(t, cfg, "done", "1")
	if !strings.Contains(out, `Completed "File taxes": +30 XP`) {
		t.Errorf("done output = %q", out)
	}
	if strings.Contains(out, "streak") {
		t.Errorf("one-off completion should not report a streak: %q", out)
	}

	res := runCLI(t, cfg, "done", "1")
	if res.code != 1 || !strings.Contains(res.stderr, "completed") {
		t.Errorf("second done: code=%d stderr=%q", res.code, res.stderr)
	}
}

func Test_Done_JSON(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")
	mustRun(t, cfg, "add", "Stretch")

	res := decodeJSON[engine.CompletionResult](t, mustRun(t, cfg, "--json", "done", "1"))
	if res.XPEarned != 10 {
		t.Errorf("XPEarned = %d, want 10", res.XPEarned)
	}
	if res.Task.CurrentStreak != 1 || res.Task.Status != engine.StatusPending {
		t.Errorf("task after completion = %+v", res.Task)
	}
	if res.Task.DueDate == nil {
		t.Error("recurring task should be rescheduled")
	}
}

func Test_TaskID_Validation(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")

	for _, args := range [][]string{
		{"done", "abc"},
		{"start", "0"},
		{"rm", "-3"},
		{"edit", "x", "--title", "y"},
	} {
		res := runCLI(t, cfg, args...)
		if res.code != 1 {
			t.Errorf("%v: exit code = %d, want 1", args, res.code)
		}
	}

	res := runCLI(t, cfg, "done", "42")
	if res.code != 1 || !strings.Contains(res.stderr, "not found") {
		t.Errorf("missing task: code=%d stderr=%q", res.code, res.stderr)
	}
}

func Test_RmAndEdit(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")
	mustRun(t, cfg, "add", "Read")

	if out := mustRun(t, cfg, "edit", "1", "--title", "Read a chapter", "-d", "3"); !strings.Contains(out, `Updated task 1 "Read a chapter"`) {
		t.Errorf("edit output = %q", out)
	}
	task := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "list", "--json"))[0]
	if task.Difficulty != engine.DifficultyVeryHard {
		t.Errorf("Difficulty = %d, want %d", task.Difficulty, engine.DifficultyVeryHard)
	}

	res := runCLI(t, cfg, "edit", "1")
	if res.code != 1 || !strings.Contains(res.stderr, "nothing to update") {
		t.Errorf("empty edit: code=%d stderr=%q", res.code, res.stderr)
	}

	mustRun(t, cfg, "rm", "1")
	if tasks := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "list", "--json")); len(tasks) != 0 {
		t.Errorf("deleted task still listed: %+v", tasks)
	}
	if tasks := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "list", "--all", "--json")); len(tasks) != 1 || tasks[0].IsActive {
		t.Errorf("list --all = %+v", tasks)
	}

	res = runCLI(t, cfg, "done", "1")
	if res.code != 1 || !strings.Contains(res.stderr, "inactive") {
		t.Errorf("done on deleted task: code=%d stderr=%q", res.code, res.stderr)
	}
}

func Test_Today(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")
	mustRun(t, cfg, "add", "Water plants")
	mustRun(t, cfg, "add", "Someday", "-f", "once", "--due", "2999-01-01")

	tasks := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "today", "--json"))
	if len(tasks) != 1 || tasks[0].Title != "Water plants" {
		t.Errorf("today = %+v", tasks)
	}
}

// ---------------------------------------------------------------------------
// Progress commands
// ---------------------------------------------------------------------------

func Test_StatsAndXP(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")
	mustRun(t, cfg, "add", "Journal", "--xp", "60")
	mustRun(t, cfg, "done", "1")

	st := decodeJSON[engine.Stats](t, mustRun(t, cfg, "stats", "--json"))
	if st.TotalXP != 60 || st.Level != 1 || st.TasksCompleted != 1 || st.CurrentStreak != 1 {
		t.Errorf("stats = %+v", st)
	}
	if text := mustRun(t, cfg, "stats"); !strings.Contains(text, "tester: Level 1 Novice") {
		t.Errorf("stats text = %q", text)
	}

	days := decodeJSON[[]engine.DayXP](t, mustRun(t, cfg, "xp", "--days", "3", "--json"))
	if len(days) != 4 {
		t.Fatalf("xp returned %d days, want 4", len(days))
	}
	if days[3].XP != 60 {
		t.Errorf("today's XP = %d, want 60", days[3].XP)
	}

	res := runCLI(t, cfg, "xp", "--days", "0")
	if res.code != 1 || !strings.Contains(res.stderr, "days") {
		t.Errorf("xp --days 0: code=%d stderr=%q", res.code, res.stderr)
	}
}

func Test_History(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")

	if out := mustRun(t, cfg, "history"); !strings.Contains(out, "No completions.") {
		t.Errorf("empty history = %q", out)
	}

	mustRun(t, cfg, "add", "Meditate", "-c", "Mindfulness")
	mustRun(t, cfg, "done", "1")
	out := mustRun(t, cfg, "history")
	if !strings.Contains(out, "Meditate") || !strings.Contains(out, "15") {
		t.Errorf("history = %q", out)
	}
}

func Test_Categories(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")

	cats := decodeJSON[[]engine.Category](t, mustRun(t, cfg, "categories", "--json"))
	if len(cats) != 10 {
		t.Fatalf("got %d categories, want 10", len(cats))
	}
	if cats[0].Name != "Health" || cats[8].BaseXP != 30 {
		t.Errorf("categories = %+v", cats)
	}
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func Test_UserFlag(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, "json")
	mustRun(t, cfg, "add", "Mine")

	tasks := decodeJSON[[]engine.Task](t, mustRun(t, cfg, "-u", "someone-else", "list", "--json"))
	if len(tasks) != 0 {
		t.Errorf("other user sees %d tasks", len(tasks))
	}
}

func Test_Version(t *testing.T) {
	t.Parallel()
	out := mustRun(t, writeConfig(t, "json"), "--version")
	if strings.TrimSpace(out) != "liferpg v"+Version {
		t.Errorf("version = %q", out)
	}
}

func Test_BadConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: mongo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := runCLI(t, path, "list")
	if res.code != 1 || !strings.Contains(res.stderr, "unknown storage backend") {
		t.Errorf("code=%d stderr=%q", res.code, res.stderr)
	}
}
