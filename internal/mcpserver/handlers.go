package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/liferpg/internal/devdb"
	"github.com/JamesPrial/liferpg/internal/engine"
	"github.com/JamesPrial/liferpg/internal/session"
)

// Handlers binds MCP tool calls to the engine service. Every task and
// progress tool acts on the session's current user.
type Handlers struct {
	svc    *engine.Service
	sess   *session.Session
	db     *devdb.Manager
	logger *log.Logger
}

// NewHandlers wires the handlers. A nil db gets a fresh manager and a nil
// logger discards output.
func NewHandlers(svc *engine.Service, sess *session.Session, db *devdb.Manager, logger *log.Logger) (*Handlers, error) {
	if svc == nil {
		return nil, errors.New("mcpserver: nil service")
	}
	if sess == nil {
		return nil, errors.New("mcpserver: nil session")
	}
	if db == nil {
		db = devdb.NewManager()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handlers{svc: svc, sess: sess, db: db, logger: logger}, nil
}

// ---------------------------------------------------------------------------
// Result helpers
// ---------------------------------------------------------------------------

// errorResult reports err as a tool error prefixed with its kind.
func errorResult(err error) *mcp.CallToolResult {
	kind := "Error"
	switch {
	case errors.Is(err, engine.ErrValidation):
		kind = "ValidationError"
	case errors.Is(err, engine.ErrInactiveTask):
		kind = "InactiveTask"
	case errors.Is(err, engine.ErrInvalidTransition):
		kind = "InvalidTransition"
	case errors.Is(err, engine.ErrNotFound):
		kind = "NotFound"
	}
	return mcp.NewToolResultError(kind + ": " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *Handlers) currentUser() (*engine.User, *mcp.CallToolResult) {
	u := h.sess.Current()
	if u == nil {
		return nil, mcp.NewToolResultError("No user selected. Use set_user first.")
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

// intArg returns the whole-number argument key, or nil when it is absent.
// JSON numbers arrive as float64; numeric strings are accepted as well.
func intArg(request mcp.CallToolRequest, key string) (*int, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, &engine.ValidationError{Field: key, Reason: "must be a number"}
		}
		n = parsed
	default:
		return nil, &engine.ValidationError{Field: key, Reason: fmt.Sprintf("must be a number; got %T", v)}
	}
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return nil, &engine.ValidationError{Field: key, Reason: "must be a whole number"}
	}
	i := int(n)
	return &i, nil
}

func requiredID(request mcp.CallToolRequest, key string) (int64, error) {
	n, err := intArg(request, key)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, &engine.ValidationError{Field: key, Reason: "is required"}
	}
	return int64(*n), nil
}

func stringArg(request mcp.CallToolRequest, key string) *string {
	s, ok := request.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func (h *Handlers) dueArg(request mcp.CallToolRequest) (*time.Time, error) {
	s := stringArg(request, "due_date")
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := engine.ParseDueDate(*s, h.svc.Location())
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ---------------------------------------------------------------------------
// Session tools
// ---------------------------------------------------------------------------

type player struct {
	engine.User
	Progress engine.LevelInfo `json:"progress"`
}

func newPlayer(u *engine.User) player {
	return player{User: *u, Progress: u.Progress()}
}

// HandleSetUser selects (and if needed creates) the acting user.
func (h *Handlers) HandleSetUser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}
	u, err := h.svc.EnsureUser(ctx, name)
	if err != nil {
		return errorResult(err), nil
	}
	h.sess.Set(u)
	h.logger.Printf("acting as user %q (id %d)", u.Name, u.ID)
	return jsonResult(newPlayer(u))
}

// HandleWhoami reports the current user with fresh progress.
func (h *Handlers) HandleWhoami(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cur, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	u, err := h.svc.GetUser(ctx, cur.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(newPlayer(u))
}

// ---------------------------------------------------------------------------
// Task tools
// ---------------------------------------------------------------------------

// HandleCreateTask creates a task for the current user.
func (h *Handlers) HandleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}

	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: title"), nil
	}
	categoryID, err := requiredID(request, "category_id")
	if err != nil {
		return errorResult(err), nil
	}
	freq, err := engine.ParseFrequency(request.GetString("frequency", ""))
	if err != nil {
		return errorResult(err), nil
	}
	in := engine.CreateTaskInput{
		Title:       title,
		Description: request.GetString("description", ""),
		CategoryID:  categoryID,
		Frequency:   freq,
	}
	xp, err := intArg(request, "xp_reward")
	if err != nil {
		return errorResult(err), nil
	}
	if xp != nil {
		in.XPReward = *xp
	}
	diff, err := intArg(request, "difficulty")
	if err != nil {
		return errorResult(err), nil
	}
	if diff != nil {
		in.Difficulty = engine.Difficulty(*diff)
	}
	if in.DueDate, err = h.dueArg(request); err != nil {
		return errorResult(err), nil
	}

	task, err := h.svc.CreateTask(ctx, u.ID, in)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

// HandleStartTask moves a task to in_progress.
func (h *Handlers) HandleStartTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	id, err := requiredID(request, "task_id")
	if err != nil {
		return errorResult(err), nil
	}
	task, err := h.svc.StartTask(ctx, u.ID, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

// HandleCompleteTask completes a task and reports the XP awarded.
func (h *Handlers) HandleCompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	id, err := requiredID(request, "task_id")
	if err != nil {
		return errorResult(err), nil
	}
	result, err := h.svc.CompleteTask(ctx, u.ID, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(result)
}

// HandleDeleteTask deactivates a task.
func (h *Handlers) HandleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	id, err := requiredID(request, "task_id")
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.svc.DeleteTask(ctx, u.ID, id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %d deleted.", id)), nil
}

// HandleUpdateTask applies the given fields to a task.
func (h *Handlers) HandleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	id, err := requiredID(request, "task_id")
	if err != nil {
		return errorResult(err), nil
	}

	patch, err := h.patchFrom(request)
	if err != nil {
		return errorResult(err), nil
	}
	if patch.IsEmpty() {
		return mcp.NewToolResultError("Nothing to update."), nil
	}
	task, err := h.svc.UpdateTask(ctx, u.ID, id, patch)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(task)
}

func (h *Handlers) patchFrom(request mcp.CallToolRequest) (engine.TaskPatch, error) {
	p := engine.TaskPatch{
		Title:       stringArg(request, "title"),
		Description: stringArg(request, "description"),
		ClearDue:    request.GetBool("clear_due_date", false),
	}
	if s := stringArg(request, "frequency"); s != nil {
		f, err := engine.ParseFrequency(*s)
		if err != nil {
			return p, err
		}
		p.Frequency = &f
	}
	cat, err := intArg(request, "category_id")
	if err != nil {
		return p, err
	}
	if cat != nil {
		id := int64(*cat)
		p.CategoryID = &id
	}
	if p.XPReward, err = intArg(request, "xp_reward"); err != nil {
		return p, err
	}
	diff, err := intArg(request, "difficulty")
	if err != nil {
		return p, err
	}
	if diff != nil {
		d := engine.Difficulty(*diff)
		p.Difficulty = &d
	}
	if p.DueDate, err = h.dueArg(request); err != nil {
		return p, err
	}
	return p, nil
}

// HandleListTasks lists the current user's tasks.
func (h *Handlers) HandleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	filter := engine.TaskFilter{
		Frequency:       engine.Frequency(request.GetString("frequency", "")),
		Status:          engine.Status(request.GetString("status", "")),
		IncludeInactive: request.GetBool("include_inactive", false),
	}
	cat, err := intArg(request, "category_id")
	if err != nil {
		return errorResult(err), nil
	}
	if cat != nil {
		filter.CategoryID = int64(*cat)
	}
	tasks, err := h.svc.ListTasks(ctx, u.ID, filter)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tasks)
}

// HandleTasksDueToday lists what is open for today.
func (h *Handlers) HandleTasksDueToday(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	tasks, err := h.svc.GetTasksDueToday(ctx, u.ID, time.Now())
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tasks)
}

// ---------------------------------------------------------------------------
// Progress tools
// ---------------------------------------------------------------------------

// HandleGetStats reports level and streak statistics.
func (h *Handlers) HandleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	stats, err := h.svc.GetStats(ctx, u.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(stats)
}

// HandleXPHistory reports XP per day.
func (h *Handlers) HandleXPHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	days := 7
	n, err := intArg(request, "days")
	if err != nil {
		return errorResult(err), nil
	}
	if n != nil {
		days = *n
	}
	history, err := h.svc.GetXPHistory(ctx, u.ID, days)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(history)
}

// HandleCompletionHistory lists recent completions.
func (h *Handlers) HandleCompletionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	days, err := intArg(request, "days")
	if err != nil {
		return errorResult(err), nil
	}
	limit, err := intArg(request, "limit")
	if err != nil {
		return errorResult(err), nil
	}
	completions, err := h.svc.RecentCompletions(ctx, u.ID, deref(days), deref(limit))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(completions)
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// HandleListCategories lists all categories.
func (h *Handlers) HandleListCategories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := h.svc.ListCategories(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cats)
}

// HandleDashboard returns the combined home view.
func (h *Handlers) HandleDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, res := h.currentUser()
	if res != nil {
		return res, nil
	}
	dash, err := h.svc.Dashboard(ctx, u.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(dash)
}
