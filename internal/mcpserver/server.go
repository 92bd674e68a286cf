package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// NewServer creates an MCP server with every liferpg tool registered on h.
func NewServer(h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"liferpg",
		Version,
		server.WithToolCapabilities(true),
	)

	// Session tools
	s.AddTool(setUserTool(), h.HandleSetUser)
	s.AddTool(whoamiTool(), h.HandleWhoami)

	// Task tools
	s.AddTool(createTaskTool(), h.HandleCreateTask)
	s.AddTool(startTaskTool(), h.HandleStartTask)
	s.AddTool(completeTaskTool(), h.HandleCompleteTask)
	s.AddTool(deleteTaskTool(), h.HandleDeleteTask)
	s.AddTool(updateTaskTool(), h.HandleUpdateTask)
	s.AddTool(listTasksTool(), h.HandleListTasks)
	s.AddTool(tasksDueTodayTool(), h.HandleTasksDueToday)

	// Progress tools
	s.AddTool(getStatsTool(), h.HandleGetStats)
	s.AddTool(xpHistoryTool(), h.HandleXPHistory)
	s.AddTool(completionHistoryTool(), h.HandleCompletionHistory)
	s.AddTool(listCategoriesTool(), h.HandleListCategories)
	s.AddTool(dashboardTool(), h.HandleDashboard)

	// Development database tools
	s.AddTool(startPostgresTool(), h.HandleStartPostgres)
	s.AddTool(stopPostgresTool(), h.HandleStopPostgres)
	s.AddTool(postgresStatusTool(), h.HandlePostgresStatus)

	return s
}
