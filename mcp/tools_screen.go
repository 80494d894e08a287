package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *MCPServer) registerScreenTools() {
	s.server.AddTool(
		mcp.NewTool("screenshot",
			mcp.WithDescription("Capture the device screen to a PNG file on this machine"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("save_path",
				mcp.Description("Destination file; defaults to the screenshots folder in the data directory"),
			),
		),
		s.handleScreenshot,
	)
}

func (s *MCPServer) handleScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	path, err := s.app.TakeScreenshot(stringArg(args, "device_id"), stringArg(args, "save_path"))
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Screenshot saved to %s", path)), nil
}
