// Package mcpserver exposes the liferpg engine as MCP tools over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var frequencies = []string{"daily", "weekly", "monthly", "once"}

// taskIDParam is shared by every tool that addresses a single task.
func taskIDParam() mcp.ToolOption {
	return mcp.WithNumber("task_id",
		mcp.Required(),
		mcp.Description("ID of the task"))
}

// ---------------------------------------------------------------------------
// Session tools
// ---------------------------------------------------------------------------

func setUserTool() mcp.Tool {
	return mcp.NewTool("set_user",
		mcp.WithDescription("Select the player every other tool acts on. The user is created if it does not exist."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Player name")),
	)
}

func whoamiTool() mcp.Tool {
	return mcp.NewTool("whoami",
		mcp.WithDescription("Show the selected player with level, title and XP progress."),
	)
}

// ---------------------------------------------------------------------------
// Task tools
// ---------------------------------------------------------------------------

func createTaskTool() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription("Create a task or habit. Recurring tasks reopen after each completion; 'once' tasks complete for good."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short task title")),
		mcp.WithNumber("category_id",
			mcp.Required(),
			mcp.Description("Category ID (see list_categories)")),
		mcp.WithString("frequency",
			mcp.Required(),
			mcp.Enum(frequencies...),
			mcp.Description("Recurrence: daily, weekly, monthly or once")),
		mcp.WithString("description",
			mcp.Description("Optional longer description")),
		mcp.WithNumber("xp_reward",
			mcp.Description("XP per completion before multipliers (defaults to the category's base XP)")),
		mcp.WithNumber("difficulty",
			mcp.Description("1 normal (x1.0), 2 hard (x1.5), 3 very hard (x2.0); default 1")),
		mcp.WithString("due_date",
			mcp.Description("Optional due date, YYYY-MM-DD or RFC 3339")),
	)
}

func startTaskTool() mcp.Tool {
	return mcp.NewTool("start_task",
		mcp.WithDescription("Mark a pending task as in progress."),
		taskIDParam(),
	)
}

func completeTaskTool() mcp.Tool {
	return mcp.NewTool("complete_task",
		mcp.WithDescription("Complete a task: awards XP with streak bonus, advances the streak and schedules the next occurrence."),
		taskIDParam(),
	)
}

func deleteTaskTool() mcp.Tool {
	return mcp.NewTool("delete_task",
		mcp.WithDescription("Deactivate a task. Its completion history and earned XP are kept."),
		taskIDParam(),
	)
}

func updateTaskTool() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription("Edit a task. Only the given fields change; status and streaks cannot be edited."),
		taskIDParam(),
		mcp.WithString("title",
			mcp.Description("New title")),
		mcp.WithString("description",
			mcp.Description("New description")),
		mcp.WithNumber("category_id",
			mcp.Description("New category ID")),
		mcp.WithString("frequency",
			mcp.Enum(frequencies...),
			mcp.Description("New recurrence")),
		mcp.WithNumber("xp_reward",
			mcp.Description("New XP reward (must be positive)")),
		mcp.WithNumber("difficulty",
			mcp.Description("New difficulty tier 1-3")),
		mcp.WithString("due_date",
			mcp.Description("New due date, YYYY-MM-DD or RFC 3339")),
		mcp.WithBoolean("clear_due_date",
			mcp.Description("Remove the due date")),
	)
}

func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List the player's tasks, optionally filtered."),
		mcp.WithString("frequency",
			mcp.Enum(frequencies...),
			mcp.Description("Only tasks with this recurrence")),
		mcp.WithString("status",
			mcp.Enum("pending", "in_progress", "completed"),
			mcp.Description("Only tasks in this status")),
		mcp.WithNumber("category_id",
			mcp.Description("Only tasks in this category")),
		mcp.WithBoolean("include_inactive",
			mcp.Description("Include deleted tasks")),
	)
}

func tasksDueTodayTool() mcp.Tool {
	return mcp.NewTool("tasks_due_today",
		mcp.WithDescription("List open tasks that are due today, overdue, or have no due date."),
	)
}

// ---------------------------------------------------------------------------
// Progress tools
// ---------------------------------------------------------------------------

func getStatsTool() mcp.Tool {
	return mcp.NewTool("get_stats",
		mcp.WithDescription("Level, title, XP progress, completion count and streak records."),
	)
}

func xpHistoryTool() mcp.Tool {
	return mcp.NewTool("xp_history",
		mcp.WithDescription("XP earned per calendar day, oldest first, ending today."),
		mcp.WithNumber("days",
			mcp.Description("How many days back to go (1-365, default 7)")),
	)
}

func completionHistoryTool() mcp.Tool {
	return mcp.NewTool("completion_history",
		mcp.WithDescription("Recent task completions, newest first."),
		mcp.WithNumber("days",
			mcp.Description("Look-back window in days (default 30)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows (default 50)")),
	)
}

func listCategoriesTool() mcp.Tool {
	return mcp.NewTool("list_categories",
		mcp.WithDescription("List task categories and their base XP."),
	)
}

func dashboardTool() mcp.Tool {
	return mcp.NewTool("dashboard",
		mcp.WithDescription("Stats, today's tasks and the last week's completions in one call."),
	)
}

// ---------------------------------------------------------------------------
// Development database tools
// ---------------------------------------------------------------------------

func startPostgresTool() mcp.Tool {
	return mcp.NewTool("start_postgres",
		mcp.WithDescription("Start a throwaway PostgreSQL container for the postgres storage backend. Returns its connection string."),
		mcp.WithString("password",
			mcp.Description("PostgreSQL password for the postgres user")),
		mcp.WithString("database",
			mcp.Description("Name of the database to create")),
		mcp.WithString("image",
			mcp.Description("Docker image to use (e.g., postgres:16-alpine)")),
	)
}

func stopPostgresTool() mcp.Tool {
	return mcp.NewTool("stop_postgres",
		mcp.WithDescription("Stop and remove the development PostgreSQL container."),
	)
}

func postgresStatusTool() mcp.Tool {
	return mcp.NewTool("postgres_status",
		mcp.WithDescription("Show whether the development PostgreSQL container is running and how to connect."),
	)
}
