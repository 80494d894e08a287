package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerFileTools registers the remote file browser
func (s *MCPServer) registerFileTools() {
	s.server.AddTool(
		mcp.NewTool("file_list",
			mcp.WithDescription("List a directory on the device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("path",
				mcp.Description("Remote directory (default: /sdcard on Android, / on iOS)"),
			),
		),
		s.handleFileList,
	)

	s.server.AddTool(
		mcp.NewTool("file_push",
			mcp.WithDescription("Upload a local file to the device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("local_path",
				mcp.Required(),
				mcp.Description("File on this machine"),
			),
			mcp.WithString("remote_path",
				mcp.Required(),
				mcp.Description("Destination path on the device"),
			),
		),
		s.handleFilePush,
	)

	s.server.AddTool(
		mcp.NewTool("file_pull",
			mcp.WithDescription("Download a file from the device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("remote_path",
				mcp.Required(),
				mcp.Description("File on the device"),
			),
			mcp.WithString("local_path",
				mcp.Description("Destination file; defaults to the downloads folder in the data directory"),
			),
		),
		s.handleFilePull,
	)

	s.server.AddTool(
		mcp.NewTool("file_delete",
			mcp.WithDescription("Delete a file or directory on the device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("remote_path",
				mcp.Required(),
				mcp.Description("Path to delete"),
			),
		),
		s.handleFileDelete,
	)
}

func (s *MCPServer) handleFileList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	dir := stringArg(args, "path")
	if dir == "" {
		dir = "/"
		if s.app.GetPlatform() == "android" {
			dir = "/sdcard"
		}
	}

	files, err := s.app.ListFiles(stringArg(args, "device_id"), dir)
	if err != nil {
		return errorResult(err), nil
	}
	if len(files) == 0 {
		return textResult(fmt.Sprintf("%s is empty", dir)), nil
	}

	result := fmt.Sprintf("%s (%d entries):\n\n", dir, len(files))
	for _, f := range files {
		if f.IsDir {
			result += fmt.Sprintf("  %s/\n", f.Name)
			continue
		}
		result += fmt.Sprintf("  %s  %d bytes  %s\n", f.Name, f.Size, f.ModTime)
	}
	return textResult(result), nil
}

func (s *MCPServer) handleFilePush(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	local := stringArg(args, "local_path")
	remote := stringArg(args, "remote_path")
	if local == "" || remote == "" {
		return nil, fmt.Errorf("local_path and remote_path are required")
	}

	if err := s.app.PushFile(stringArg(args, "device_id"), local, remote); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Uploaded %s to %s", local, remote)), nil
}

func (s *MCPServer) handleFilePull(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	remote := stringArg(args, "remote_path")
	if remote == "" {
		return nil, fmt.Errorf("remote_path is required")
	}

	saved, err := s.app.PullFile(stringArg(args, "device_id"), remote, stringArg(args, "local_path"))
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Downloaded %s to %s", remote, saved)), nil
}

func (s *MCPServer) handleFileDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	remote := stringArg(args, "remote_path")
	if remote == "" {
		return nil, fmt.Errorf("remote_path is required")
	}
	deviceID := stringArg(args, "device_id")

	confirmed, err := s.requestConfirmation(ctx, "Delete remote file",
		fmt.Sprintf("Device: %s\nPath: %s\n\nOn Android directories are removed recursively.", orSelected(deviceID), remote))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return textResult("Delete cancelled by user"), nil
	}

	if err := s.app.DeleteFile(deviceID, remote); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Deleted %s", remote)), nil
}
