package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *MCPServer) registerJournalTools() {
	s.server.AddTool(
		mcp.NewTool("journal_recent",
			mcp.WithDescription("Show recently started operations with their outcome"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries (default 20)"),
			),
		),
		s.handleJournalRecent,
	)
}

func (s *MCPServer) handleJournalRecent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	if l, ok := request.GetArguments()["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	ops, err := s.app.RecentOperations(limit)
	if err != nil {
		return errorResult(err), nil
	}
	if len(ops) == 0 {
		return textResult("No operations recorded"), nil
	}

	var b strings.Builder
	for _, op := range ops {
		name := op.Slot
		if name == "" {
			name = op.Operation
		}
		outcome := "running"
		switch {
		case op.Running():
		case op.Failure != "":
			outcome = string(op.Failure)
			if op.Detail != "" {
				outcome += ": " + op.Detail
			}
		default:
			outcome = "ok"
		}
		fmt.Fprintf(&b, "%s  %-13s %-20s %s\n", op.StartedAt.Format("01-02 15:04:05"), name, op.DeviceID, outcome)
	}
	return textResult(b.String()), nil
}
