package mcp

import (
	"sync"
	"time"

	"DevPanel/pkg/types"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockPanelApp is a PanelApp for tests
type MockPanelApp struct {
	mu    sync.Mutex
	Calls []MockCall

	Platform string
	Selected string

	GetDevicesResult    []Device
	SelectDeviceError   error
	RefreshResult       bool
	GetDeviceInfoResult DeviceInfo
	GetDeviceInfoError  error
	RebootError         error
	ToggleResult        SlotStatus
	ToggleError         error
	StopError           error
	StatusResult        []SlotStatus
	InstallError        error
	UninstallError      error
	ListPackagesResult  []AppPackage
	ListPackagesError   error
	ScreenshotPath      string
	ScreenshotError     error
	ListFilesResult     []FileEntry
	ListFilesError      error
	PushFileError       error
	PullFilePath        string
	PullFileError       error
	DeleteFileError     error
	RecentResult        []JournalEntry
	RecentError         error

	AppVersion string
}

// NewMockPanelApp creates a MockPanelApp with sensible defaults
func NewMockPanelApp() *MockPanelApp {
	return &MockPanelApp{
		Calls:         make([]MockCall, 0),
		AppVersion:    "1.0.0-test",
		Platform:      "android",
		RefreshResult: true,
	}
}

func (m *MockPanelApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// WasMethodCalled checks if a method was called
func (m *MockPanelApp) WasMethodCalled(method string) bool {
	return m.GetLastCallByMethod(method) != nil
}

// GetLastCallByMethod returns the last call to a specific method
func (m *MockPanelApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			c := m.Calls[i]
			return &c
		}
	}
	return nil
}

func (m *MockPanelApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}

func (m *MockPanelApp) GetPlatform() string { return m.Platform }

func (m *MockPanelApp) GetDevices() []Device {
	m.recordCall("GetDevices")
	return m.GetDevicesResult
}

func (m *MockPanelApp) GetSelectedDevice() string { return m.Selected }

func (m *MockPanelApp) SelectDevice(deviceID string) (string, error) {
	m.recordCall("SelectDevice", deviceID)
	if m.SelectDeviceError != nil {
		return "", m.SelectDeviceError
	}
	m.Selected = ""
	for _, d := range m.GetDevicesResult {
		if d.ID == deviceID {
			m.Selected = deviceID
		}
	}
	return m.Selected, nil
}

func (m *MockPanelApp) RefreshDevices() bool {
	m.recordCall("RefreshDevices")
	return m.RefreshResult
}

func (m *MockPanelApp) GetDeviceInfo(deviceID string) (DeviceInfo, error) {
	m.recordCall("GetDeviceInfo", deviceID)
	return m.GetDeviceInfoResult, m.GetDeviceInfoError
}

func (m *MockPanelApp) RebootDevice(deviceID string) error {
	m.recordCall("RebootDevice", deviceID)
	return m.RebootError
}

func (m *MockPanelApp) ToggleOperation(slot, deviceID string, params OperationParams) (SlotStatus, error) {
	m.recordCall("ToggleOperation", slot, deviceID, params)
	return m.ToggleResult, m.ToggleError
}

func (m *MockPanelApp) StopOperation(slot string) error {
	m.recordCall("StopOperation", slot)
	return m.StopError
}

func (m *MockPanelApp) GetOperationStatus() []SlotStatus {
	m.recordCall("GetOperationStatus")
	return m.StatusResult
}

func (m *MockPanelApp) InstallPackage(deviceID, path string) error {
	m.recordCall("InstallPackage", deviceID, path)
	return m.InstallError
}

func (m *MockPanelApp) UninstallPackage(deviceID, packageID string) error {
	m.recordCall("UninstallPackage", deviceID, packageID)
	return m.UninstallError
}

func (m *MockPanelApp) ListPackages(deviceID string) ([]AppPackage, error) {
	m.recordCall("ListPackages", deviceID)
	return m.ListPackagesResult, m.ListPackagesError
}

func (m *MockPanelApp) TakeScreenshot(deviceID, dest string) (string, error) {
	m.recordCall("TakeScreenshot", deviceID, dest)
	if dest == "" {
		dest = m.ScreenshotPath
	}
	return dest, m.ScreenshotError
}

func (m *MockPanelApp) ListFiles(deviceID, dir string) ([]FileEntry, error) {
	m.recordCall("ListFiles", deviceID, dir)
	return m.ListFilesResult, m.ListFilesError
}

func (m *MockPanelApp) PushFile(deviceID, localPath, remotePath string) error {
	m.recordCall("PushFile", deviceID, localPath, remotePath)
	return m.PushFileError
}

func (m *MockPanelApp) PullFile(deviceID, remotePath, localPath string) (string, error) {
	m.recordCall("PullFile", deviceID, remotePath, localPath)
	if localPath == "" {
		localPath = m.PullFilePath
	}
	return localPath, m.PullFileError
}

func (m *MockPanelApp) DeleteFile(deviceID, remotePath string) error {
	m.recordCall("DeleteFile", deviceID, remotePath)
	return m.DeleteFileError
}

func (m *MockPanelApp) RecentOperations(limit int) ([]JournalEntry, error) {
	m.recordCall("RecentOperations", limit)
	return m.RecentResult, m.RecentError
}

// SampleDevice returns an online device for tests
func SampleDevice(id string) Device {
	return Device{ID: id, Name: "Pixel " + id, Model: "Pixel_7", Status: types.StatusOnline}
}

// IdleStatus returns every slot idle, with slot running if given
func IdleStatus(running types.Slot, deviceID string, tail ...string) []SlotStatus {
	out := make([]SlotStatus, 0, len(types.AllSlots))
	for _, s := range types.AllSlots {
		st := SlotStatus{Slot: s, State: types.StateIdle}
		if s == running {
			st = SlotStatus{Slot: s, State: types.StateRunning, RunID: "run-1", DeviceID: deviceID,
				StartedAt: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC), Tail: tail}
		}
		out = append(out, st)
	}
	return out
}
