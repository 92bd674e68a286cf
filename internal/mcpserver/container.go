package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/liferpg/internal/devdb"
)

// HandleStartPostgres starts the development PostgreSQL container.
// Parameters:
//   - password: PostgreSQL password (default: "liferpg")
//   - database: database name (default: "liferpg")
//   - image: Docker image (default: "postgres:16-alpine")
//
// A second start reports the running container's connection string.
func (h *Handlers) HandleStartPostgres(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connStr, err := h.db.Start(ctx, devdb.Options{
		Password: request.GetString("password", ""),
		Database: request.GetString("database", ""),
		Image:    request.GetString("image", ""),
	})
	if errors.Is(err, devdb.ErrAlreadyRunning) {
		return mcp.NewToolResultText(fmt.Sprintf("PostgreSQL container already running.\nConnection string: %s", connStr)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.logger.Printf("started postgres container")
	return mcp.NewToolResultText(fmt.Sprintf("PostgreSQL container started successfully.\nConnection string: %s\nSet LIFERPG_STORAGE_BACKEND=postgres and LIFERPG_POSTGRES_URL to use it.", connStr)), nil
}

// HandleStopPostgres stops and removes the container.
func (h *Handlers) HandleStopPostgres(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.db.Stop(ctx); err != nil {
		if errors.Is(err, devdb.ErrNotRunning) {
			return mcp.NewToolResultError("No PostgreSQL container is running."), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.logger.Printf("stopped postgres container")
	return mcp.NewToolResultText("PostgreSQL container stopped and removed."), nil
}

// HandlePostgresStatus reports on the container.
func (h *Handlers) HandlePostgresStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.db.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if st.ContainerID == "" {
		return mcp.NewToolResultText("Status: No container managed.\nNo PostgreSQL container has been started."), nil
	}
	return mcp.NewToolResultText(st.String()), nil
}
