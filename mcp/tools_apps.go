package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerAppTools registers package management tools
func (s *MCPServer) registerAppTools() {
	s.server.AddTool(
		mcp.NewTool("app_list",
			mcp.WithDescription("List user-installed apps on a device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
		),
		s.handleAppList,
	)

	s.server.AddTool(
		mcp.NewTool("app_install",
			mcp.WithDescription("Install a package file (.apk on Android, .ipa on iOS) and wait for the result. "+
				"Use operation_toggle with slot=install to stream progress instead."),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Local path of the package file"),
			),
		),
		s.handleAppInstall,
	)

	s.server.AddTool(
		mcp.NewTool("app_uninstall",
			mcp.WithDescription("Uninstall an app by package name or bundle id"),
			mcp.WithString("device_id",
				mcp.Description("Device ID; defaults to the selected device"),
			),
			mcp.WithString("package",
				mcp.Required(),
				mcp.Description("Package name (Android) or bundle id (iOS)"),
			),
		),
		s.handleAppUninstall,
	)
}

func (s *MCPServer) handleAppList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID := stringArg(request.GetArguments(), "device_id")

	packages, err := s.app.ListPackages(deviceID)
	if err != nil {
		return errorResult(err), nil
	}
	if len(packages) == 0 {
		return textResult("No packages found"), nil
	}

	result := fmt.Sprintf("Found %d package(s):\n\n", len(packages))
	for i, p := range packages {
		result += fmt.Sprintf("%d. %s\n", i+1, p.ID)
		if p.Name != "" {
			result += fmt.Sprintf("   Name: %s\n", p.Name)
		}
		if p.Version != "" {
			result += fmt.Sprintf("   Version: %s\n", p.Version)
		}
	}
	return textResult(result), nil
}

func (s *MCPServer) handleAppInstall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path := stringArg(args, "path")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	if err := s.app.InstallPackage(stringArg(args, "device_id"), path); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Installed %s", path)), nil
}

func (s *MCPServer) handleAppUninstall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	pkg := stringArg(args, "package")
	if pkg == "" {
		return nil, fmt.Errorf("package is required")
	}
	deviceID := stringArg(args, "device_id")

	confirmed, err := s.requestConfirmation(ctx, "Uninstall app",
		fmt.Sprintf("Device: %s\nPackage: %s\n\nThis removes the app and its data.", orSelected(deviceID), pkg))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return textResult("Uninstall cancelled by user"), nil
	}

	if err := s.app.UninstallPackage(deviceID, pkg); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Uninstalled %s", pkg)), nil
}
