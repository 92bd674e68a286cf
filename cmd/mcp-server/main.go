// Package main implements the liferpg MCP server.
//
// The server exposes the task and progression tools of internal/mcpserver,
// plus tools for a development PostgreSQL container, over stdio JSON-RPC
// (Model Context Protocol). Configuration comes from internal/config.
package main

import (
	"context"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/JamesPrial/liferpg/internal/app"
	"github.com/JamesPrial/liferpg/internal/config"
	"github.com/JamesPrial/liferpg/internal/devdb"
	"github.com/JamesPrial/liferpg/internal/mcpserver"
)

func run() int {
	errLogger := log.New(os.Stderr, "[mcp-server] ", log.LstdFlags)

	cfg, err := config.Load("")
	if err != nil {
		errLogger.Printf("Failed to load config: %v", err)
		return 1
	}

	a, err := app.Open(context.Background(), cfg, errLogger)
	if err != nil {
		errLogger.Printf("Failed to open liferpg: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			errLogger.Printf("Close: %v", err)
		}
	}()

	db := devdb.NewManager()
	defer func() {
		if db.ConnStr() != "" {
			_ = db.Stop(context.Background())
		}
	}()

	h, err := mcpserver.NewHandlers(a.Service, a.Session, db, errLogger)
	if err != nil {
		errLogger.Printf("Failed to create MCP server: %v", err)
		return 1
	}

	if err := server.ServeStdio(mcpserver.NewServer(h), server.WithErrorLogger(errLogger)); err != nil {
		errLogger.Printf("Server error: %v", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
