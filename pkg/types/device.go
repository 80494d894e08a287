package types

import (
	"fmt"
	"time"
)

const (
	// Placeholder is used for device fields a poll could not resolve
	Placeholder = "Unknown"
	// NotAvailable fills name and model for devices that are not ready
	// (unauthorized, offline); those are never queried.
	NotAvailable = "N/A"
)

// Platform identifies which external toolchain drives a panel
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// ParsePlatform validates a platform name from flags or config
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformAndroid, PlatformIOS:
		return Platform(s), nil
	case "":
		return PlatformAndroid, nil
	}
	return "", fmt.Errorf("unknown platform %q (want android or ios)", s)
}

// DeviceStatus is the connection status reported by the listing tool
type DeviceStatus string

const (
	StatusOnline       DeviceStatus = "online"
	StatusUnauthorized DeviceStatus = "unauthorized"
	StatusOffline      DeviceStatus = "offline"
	StatusUnknown      DeviceStatus = "unknown"
)

// ParseADBStatus maps the second column of `adb devices -l`
func ParseADBStatus(s string) DeviceStatus {
	switch s {
	case "device":
		return StatusOnline
	case "unauthorized":
		return StatusUnauthorized
	case "offline":
		return StatusOffline
	}
	return StatusUnknown
}

// Device represents an attached device as last reported by a poll
type Device struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Model  string       `json:"model"`
	Status DeviceStatus `json:"status"`
}

// Usable reports whether commands may be dispatched to the device
func (d Device) Usable() bool {
	return d.Status == StatusOnline
}

// Label is the "<id> (<name>)" form used by device pickers
func (d Device) Label() string {
	return fmt.Sprintf("%s (%s)", d.ID, d.Name)
}

// Slot is a category of exclusive long-running operation
type Slot string

const (
	SlotMirror    Slot = "mirror"
	SlotRecording Slot = "recording"
	SlotBackup    Slot = "backup"
	SlotInstall   Slot = "install"
	SlotLogStream Slot = "logStream"
	SlotCommand   Slot = "command"
)

// AllSlots lists every slot in display order
var AllSlots = []Slot{SlotMirror, SlotRecording, SlotBackup, SlotInstall, SlotLogStream, SlotCommand}

// ParseSlot validates a slot name
func ParseSlot(s string) (Slot, error) {
	for _, slot := range AllSlots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown operation slot %q", s)
}

// SlotState is the lifecycle state of an operation slot
type SlotState string

const (
	StateIdle      SlotState = "idle"
	StateStarting  SlotState = "starting"
	StateRunning   SlotState = "running"
	StateStopping  SlotState = "stopping"
	StateCompleted SlotState = "completed"
)

// OperationParams carries the user-supplied inputs for a slot operation.
// Only the fields relevant to the slot are read.
type OperationParams struct {
	MaxSize     int      `json:"maxSize"`
	BitRateMbps float64  `json:"bitRateMbps"`
	AlwaysOnTop bool     `json:"alwaysOnTop"`
	Fullscreen  bool     `json:"fullscreen"`
	NoControl   bool     `json:"noControl"`
	RecordPath  string   `json:"recordPath"`
	BackupDir   string   `json:"backupDir"`
	PackagePath string   `json:"packagePath"`
	Args        []string `json:"args"`
}

// SlotStatus is a read-only view of a slot for callers outside the loop
type SlotStatus struct {
	Slot      Slot      `json:"slot"`
	State     SlotState `json:"state"`
	RunID     string    `json:"runId,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Tail      []string  `json:"tail,omitempty"`
}

// FailureKind classifies a rejected or failed operation
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureSpawn            FailureKind = "spawn"
	FailureTimeout          FailureKind = "timeout"
	FailureNoDeviceSelected FailureKind = "no_device_selected"
	FailureDeviceGone       FailureKind = "device_gone"
	FailureDeviceNotReady   FailureKind = "device_not_ready"
	FailureNonZeroExit      FailureKind = "non_zero_exit"
	FailureBusy             FailureKind = "busy"
	FailureInvalidParams    FailureKind = "invalid_params"
	FailureUnsupported      FailureKind = "unsupported"
	FailureCancelled        FailureKind = "cancelled"
	FailureInternal         FailureKind = "internal"
)

// DeviceInfo is the key/value property dump of a device
type DeviceInfo struct {
	DeviceID string            `json:"deviceId"`
	Props    map[string]string `json:"props"`
}

// AppPackage represents an installed application
type AppPackage struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// FileEntry is one line of a remote directory listing
type FileEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Mode    string `json:"mode"`
	ModTime string `json:"modTime"`
	IsDir   bool   `json:"isDir"`
}
