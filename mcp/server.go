// Package mcp exposes the device panel over the Model Context Protocol so
// external agents can list devices and drive operations.
package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"DevPanel/pkg/journal"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type (
	Device          = types.Device
	DeviceInfo      = types.DeviceInfo
	AppPackage      = types.AppPackage
	FileEntry       = types.FileEntry
	SlotStatus      = types.SlotStatus
	OperationParams = types.OperationParams
	JournalEntry    = journal.Operation
)

// PanelApp is what the MCP tools need from the application
type PanelApp interface {
	GetAppVersion() string
	GetPlatform() string

	// Devices
	GetDevices() []Device
	GetSelectedDevice() string
	SelectDevice(deviceID string) (string, error)
	RefreshDevices() bool
	GetDeviceInfo(deviceID string) (DeviceInfo, error)
	RebootDevice(deviceID string) error

	// Slot operations
	ToggleOperation(slot, deviceID string, params OperationParams) (SlotStatus, error)
	StopOperation(slot string) error
	GetOperationStatus() []SlotStatus

	// One-shots
	InstallPackage(deviceID, path string) error
	UninstallPackage(deviceID, packageID string) error
	ListPackages(deviceID string) ([]AppPackage, error)
	TakeScreenshot(deviceID, dest string) (string, error)

	// Remote files
	ListFiles(deviceID, dir string) ([]FileEntry, error)
	PushFile(deviceID, localPath, remotePath string) error
	PullFile(deviceID, remotePath, localPath string) (string, error)
	DeleteFile(deviceID, remotePath string) error

	RecentOperations(limit int) ([]JournalEntry, error)
}

// MCPServer wraps the MCP server for one panel
type MCPServer struct {
	app       PanelApp
	server    *server.MCPServer
	stdio     *server.StdioServer
	confirm   bool
	mu        sync.Mutex
	isRunning bool
}

type Option func(*MCPServer)

// WithConfirmations asks the client to confirm destructive tools
// (uninstall, reboot, file delete) through elicitation before running them.
func WithConfirmations() Option {
	return func(s *MCPServer) { s.confirm = true }
}

// NewMCPServer creates the server and registers every tool and resource
func NewMCPServer(app PanelApp, opts ...Option) *MCPServer {
	mcpServer := server.NewMCPServer(
		"devpanel",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithElicitation(),
		server.WithLogging(),
	)

	s := &MCPServer{
		app:    app,
		server: mcpServer,
	}
	for _, o := range opts {
		o(s)
	}

	s.registerTools()
	s.registerResources()

	return s
}

func (s *MCPServer) registerTools() {
	s.registerDeviceTools()
	s.registerOperationTools()
	s.registerAppTools()
	s.registerScreenTools()
	s.registerFileTools()
	s.registerJournalTools()
}

func (s *MCPServer) registerResources() {
	s.server.AddResource(
		mcp.NewResource(
			"devpanel://devices",
			"Attached devices",
			mcp.WithMIMEType("application/json"),
		),
		s.handleDevicesResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"devpanel://devices/{deviceId}",
			"Device properties",
		),
		s.handleDeviceInfoResource,
	)

	s.server.AddResource(
		mcp.NewResource(
			"devpanel://operations",
			"Operation slot states",
			mcp.WithMIMEType("application/json"),
		),
		s.handleOperationsResource,
	)
}

// Start serves stdio until stdin closes or an interrupt arrives
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run(os.Stdin, os.Stdout)
}

// StartAsync is Start on a background goroutine
func (s *MCPServer) StartAsync() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	go s.run(os.Stdin, os.Stdout)
	return nil
}

func (s *MCPServer) run(in io.Reader, out io.Writer) error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.LogInfo("mcp").Str("platform", s.app.GetPlatform()).Msg("MCP server started")
	err := s.stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() == nil {
		logger.LogError("mcp").Err(err).Msg("MCP server error")
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	return err
}

// Stop marks the server stopped; the stdio loop ends with stdin
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
}

func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// requestConfirmation asks the client to approve a destructive operation.
// It always approves when confirmations are off.
func (s *MCPServer) requestConfirmation(ctx context.Context, operation, details string) (bool, error) {
	if !s.confirm {
		return true, nil
	}
	elicitationRequest := mcp.ElicitationRequest{
		Params: mcp.ElicitationParams{
			Message: fmt.Sprintf("%s\n\n%s\n\nProceed?", operation, details),
			RequestedSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Confirm to proceed with this operation",
					},
				},
				"required": []string{"confirm"},
			},
		},
	}

	result, err := s.server.RequestElicitation(ctx, elicitationRequest)
	if err != nil {
		return false, fmt.Errorf("failed to request confirmation: %w", err)
	}

	if result.Action != mcp.ElicitationResponseActionAccept {
		return false, nil
	}

	data, ok := result.Content.(map[string]any)
	if !ok {
		return false, fmt.Errorf("unexpected response format")
	}

	confirm, ok := data["confirm"].(bool)
	if !ok {
		return false, fmt.Errorf("invalid confirmation response")
	}

	return confirm, nil
}

// textResult builds a plain tool result
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

// errorResult reports a rejected operation to the client without failing
// the JSON-RPC call, so agents can read the failure kind.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("Error: %v", err))},
		IsError: true,
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
