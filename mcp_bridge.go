package main

import (
	"DevPanel/mcp"
	"DevPanel/pkg/logger"
)

var _ mcp.PanelApp = (*App)(nil)

// StartMCPServer serves the app over stdio until stdin closes
func StartMCPServer(app *App, confirm bool) error {
	var opts []mcp.Option
	if confirm {
		opts = append(opts, mcp.WithConfirmations())
	}
	mcpServer := mcp.NewMCPServer(app, opts...)
	if err := mcpServer.Start(); err != nil {
		logger.LogError("mcp").Err(err).Msg("MCP server stopped with error")
		return err
	}
	return nil
}
