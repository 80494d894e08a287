package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleDevicesResource handles devpanel://devices
func (s *MCPServer) handleDevicesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(request.Params.URI, s.app.GetDevices())
}

// handleDeviceInfoResource handles devpanel://devices/{deviceId}
func (s *MCPServer) handleDeviceInfoResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deviceID, ok := strings.CutPrefix(request.Params.URI, "devpanel://devices/")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return nil, fmt.Errorf("invalid URI format: %s", request.Params.URI)
	}

	info, err := s.app.GetDeviceInfo(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device info: %w", err)
	}
	return jsonResource(request.Params.URI, info)
}

func (s *MCPServer) handleOperationsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(request.Params.URI, s.app.GetOperationStatus())
}
