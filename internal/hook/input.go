// Package hook turns a single JSON action read from stdin into a call on the
// engine service. It lets shell scripts, cron jobs and git hooks record
// progress without going through the CLI.
//
// A payload looks like:
//
//	{"action":"complete","user":"ada","task_id":3}
//	{"action":"create","title":"Run","category_id":1,"frequency":"daily"}
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// Action names accepted on stdin.
const (
	ActionCreate   = "create"
	ActionStart    = "start"
	ActionComplete = "complete"
	ActionDelete   = "delete"
)

// ActionInput is the JSON payload read from stdin.
type ActionInput struct {
	// Action is one of create, start, complete or delete.
	Action string `json:"action"`

	// User is the player name. Empty means the configured default user.
	User string `json:"user"`

	// TaskID addresses the task for start, complete and delete.
	TaskID int64 `json:"task_id"`

	// The remaining fields are only read by create.
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  int64  `json:"category_id"`
	Frequency   string `json:"frequency"`
	XPReward    int    `json:"xp_reward"`
	Difficulty  int    `json:"difficulty"`
	DueDate     string `json:"due_date"`
}

func knownAction(a string) bool {
	switch a {
	case ActionCreate, ActionStart, ActionComplete, ActionDelete:
		return true
	}
	return false
}

// ReadActionInput reads and parses one action from r.
//
// Returns (nil, nil) if the payload carries no known action (caller should
// exit 0). Returns (nil, err) if the JSON is malformed.
//
// When DEBUG env var is set, ignored payloads are logged to stderr.
func ReadActionInput(r io.Reader) (*ActionInput, error) {
	var input ActionInput

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to decode action input: %w", err)
	}

	input.Action = strings.ToLower(strings.TrimSpace(input.Action))
	if !knownAction(input.Action) {
		if os.Getenv("DEBUG") != "" {
			fmt.Fprintf(os.Stderr, "Ignoring unknown action: %q\n", input.Action)
		}
		return nil, nil
	}

	return &input, nil
}

// Validate checks that the fields the action needs are present.
func (in *ActionInput) Validate() error {
	if in.Action != ActionCreate {
		if in.TaskID <= 0 {
			return &engine.ValidationError{Field: "task_id", Reason: "is required for " + in.Action}
		}
		return nil
	}
	if strings.TrimSpace(in.Title) == "" {
		return &engine.ValidationError{Field: "title", Reason: "is required for create"}
	}
	if in.CategoryID <= 0 {
		return &engine.ValidationError{Field: "category_id", Reason: "is required for create"}
	}
	if strings.TrimSpace(in.Frequency) == "" {
		return &engine.ValidationError{Field: "frequency", Reason: "is required for create"}
	}
	return nil
}
