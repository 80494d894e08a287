package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"DevPanel/pkg/types"
)

func slotNames() []string {
	names := make([]string, len(types.AllSlots))
	for i, s := range types.AllSlots {
		names[i] = string(s)
	}
	return names
}

// registerOperationTools registers the long-running slot tools
func (s *MCPServer) registerOperationTools() {
	s.server.AddTool(
		mcp.NewTool("operation_toggle",
			mcp.WithDescription("Start a long-running operation in a slot, or stop it if the slot is already running. "+
				"Slots: mirror, recording (scrcpy), backup (iOS), install, logStream, command."),
			mcp.WithString("slot",
				mcp.Required(),
				mcp.Description("Operation slot"),
				mcp.Enum(slotNames()...),
			),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithNumber("max_size",
				mcp.Description("mirror/recording: max frame dimension in pixels, 0 for native"),
			),
			mcp.WithNumber("bit_rate_mbps",
				mcp.Description("mirror/recording: video bit rate in Mbps, 0 for default"),
			),
			mcp.WithBoolean("always_on_top",
				mcp.Description("mirror: keep the window on top"),
			),
			mcp.WithBoolean("fullscreen",
				mcp.Description("mirror: start fullscreen"),
			),
			mcp.WithBoolean("no_control",
				mcp.Description("mirror: view only"),
			),
			mcp.WithString("record_path",
				mcp.Description("recording: output file"),
			),
			mcp.WithString("backup_dir",
				mcp.Description("backup: existing destination directory"),
			),
			mcp.WithString("package_path",
				mcp.Description("install: package file (.apk or .ipa)"),
			),
			mcp.WithArray("args",
				mcp.Description("command: tool arguments, e.g. [\"shell\", \"ls\"]"),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		s.handleOperationToggle,
	)

	s.server.AddTool(
		mcp.NewTool("operation_stop",
			mcp.WithDescription("Stop the operation running in a slot. Does nothing if the slot is idle."),
			mcp.WithString("slot",
				mcp.Required(),
				mcp.Description("Operation slot"),
				mcp.Enum(slotNames()...),
			),
		),
		s.handleOperationStop,
	)

	s.server.AddTool(
		mcp.NewTool("operation_status",
			mcp.WithDescription("Show the state of every operation slot with the last output lines of running ones"),
			mcp.WithNumber("tail",
				mcp.Description("Number of output lines to include per slot (default 10)"),
			),
		),
		s.handleOperationStatus,
	)
}

func paramsFromArgs(args map[string]any) OperationParams {
	p := OperationParams{
		RecordPath:  stringArg(args, "record_path"),
		BackupDir:   stringArg(args, "backup_dir"),
		PackagePath: stringArg(args, "package_path"),
	}
	if v, ok := args["max_size"].(float64); ok {
		p.MaxSize = int(v)
	}
	if v, ok := args["bit_rate_mbps"].(float64); ok {
		p.BitRateMbps = v
	}
	p.AlwaysOnTop, _ = args["always_on_top"].(bool)
	p.Fullscreen, _ = args["fullscreen"].(bool)
	p.NoControl, _ = args["no_control"].(bool)
	switch v := args["args"].(type) {
	case []any:
		for _, a := range v {
			if str, ok := a.(string); ok {
				p.Args = append(p.Args, str)
			}
		}
	case []string:
		p.Args = append(p.Args, v...)
	case string:
		p.Args = strings.Fields(v)
	}
	return p
}

func (s *MCPServer) handleOperationToggle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	slot := stringArg(args, "slot")
	if slot == "" {
		return nil, fmt.Errorf("slot is required")
	}

	st, err := s.app.ToggleOperation(slot, stringArg(args, "device_id"), paramsFromArgs(args))
	if err != nil {
		return errorResult(err), nil
	}

	switch st.State {
	case types.StateStopping:
		return textResult(fmt.Sprintf("Stopping %s on %s", st.Slot, st.DeviceID)), nil
	default:
		return textResult(fmt.Sprintf("Started %s on %s (run %s)", st.Slot, st.DeviceID, st.RunID)), nil
	}
}

func (s *MCPServer) handleOperationStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slot := stringArg(request.GetArguments(), "slot")
	if slot == "" {
		return nil, fmt.Errorf("slot is required")
	}
	if err := s.app.StopOperation(slot); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Stop requested for %s", slot)), nil
}

func (s *MCPServer) handleOperationStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tail := 10
	if t, ok := request.GetArguments()["tail"].(float64); ok && t >= 0 {
		tail = int(t)
	}

	statuses := s.app.GetOperationStatus()
	var b strings.Builder
	for _, st := range statuses {
		if st.State == types.StateIdle {
			fmt.Fprintf(&b, "%s: idle\n", st.Slot)
			continue
		}
		fmt.Fprintf(&b, "%s: %s on %s since %s\n", st.Slot, st.State, st.DeviceID, st.StartedAt.Format("15:04:05"))
		lines := st.Tail
		if len(lines) > tail {
			lines = lines[len(lines)-tail:]
		}
		for _, l := range lines {
			fmt.Fprintf(&b, "   | %s\n", l)
		}
	}

	jsonData, _ := json.MarshalIndent(statuses, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(b.String()),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}
