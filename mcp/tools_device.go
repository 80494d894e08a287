package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDeviceTools registers device listing and selection tools
func (s *MCPServer) registerDeviceTools() {
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List attached devices as of the last poll, marking the selected one"),
		),
		s.handleDeviceList,
	)

	s.server.AddTool(
		mcp.NewTool("device_select",
			mcp.WithDescription("Select the device that operations target by default. An empty or unknown id clears the selection."),
			mcp.WithString("device_id",
				mcp.Description("Device ID (serial or UDID)"),
			),
		),
		s.handleDeviceSelect,
	)

	s.server.AddTool(
		mcp.NewTool("device_refresh",
			mcp.WithDescription("Poll for devices now instead of waiting for the next interval"),
		),
		s.handleDeviceRefresh,
	)

	s.server.AddTool(
		mcp.NewTool("device_info",
			mcp.WithDescription("Get the property dump of a device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
		),
		s.handleDeviceInfo,
	)

	s.server.AddTool(
		mcp.NewTool("device_reboot",
			mcp.WithDescription("Reboot a device. The selection is cleared and the list refreshed once it is back."),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
		),
		s.handleDeviceReboot,
	)
}

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices := s.app.GetDevices()
	if len(devices) == 0 {
		return textResult("No devices connected"), nil
	}

	selected := s.app.GetSelectedDevice()
	result := fmt.Sprintf("Found %d %s device(s):\n\n", len(devices), s.app.GetPlatform())
	for i, d := range devices {
		marker := ""
		if d.ID == selected {
			marker = " [selected]"
		}
		result += fmt.Sprintf("%d. %s%s\n   Model: %s, Status: %s\n", i+1, d.Label(), marker, d.Model, d.Status)
	}

	jsonData, _ := json.MarshalIndent(devices, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(result),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}, nil
}

func (s *MCPServer) handleDeviceSelect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID := stringArg(request.GetArguments(), "device_id")

	selected, err := s.app.SelectDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select device: %w", err)
	}
	if selected == "" {
		if deviceID != "" {
			return textResult(fmt.Sprintf("Device %s is not attached; selection cleared", deviceID)), nil
		}
		return textResult("Selection cleared"), nil
	}
	return textResult(fmt.Sprintf("Selected %s", selected)), nil
}

func (s *MCPServer) handleDeviceRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.app.RefreshDevices() {
		return textResult("Refresh skipped: too many refresh requests, the next scheduled poll will run shortly"), nil
	}
	return textResult("Refresh requested"), nil
}

func (s *MCPServer) handleDeviceInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID := stringArg(request.GetArguments(), "device_id")

	info, err := s.app.GetDeviceInfo(deviceID)
	if err != nil {
		return errorResult(err), nil
	}

	keys := make([]string, 0, len(info.Props))
	for k := range info.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Device %s (%d properties)\n\n", info.DeviceID, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, info.Props[k])
	}
	return textResult(b.String()), nil
}

func (s *MCPServer) handleDeviceReboot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID := stringArg(request.GetArguments(), "device_id")

	confirmed, err := s.requestConfirmation(ctx, "Reboot device", fmt.Sprintf("Device: %s", orSelected(deviceID)))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return textResult("Reboot cancelled by user"), nil
	}

	if err := s.app.RebootDevice(deviceID); err != nil {
		return errorResult(err), nil
	}
	return textResult("Reboot command sent"), nil
}

func orSelected(deviceID string) string {
	if deviceID == "" {
		return "(selected device)"
	}
	return deviceID
}
