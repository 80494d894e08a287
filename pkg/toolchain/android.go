package toolchain

import (
	"fmt"
	"strconv"
	"time"

	"DevPanel/pkg/poller"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/types"
)

// Android drives devices through adb and mirrors them with scrcpy
type Android struct {
	ADB    string
	Scrcpy string

	now func() time.Time
}

func NewAndroid() *Android {
	return &Android{ADB: "adb", Scrcpy: "scrcpy", now: time.Now}
}

func (a *Android) Platform() types.Platform { return types.PlatformAndroid }

func (a *Android) Tools() []Tool {
	return []Tool{
		{Name: a.ADB, VersionArgs: []string{"version"}},
		{Name: a.Scrcpy, VersionArgs: []string{"--version"}},
	}
}

func (a *Android) adb(deviceID string, args ...string) runner.Command {
	return runner.Command{Tool: a.ADB, Args: append([]string{"-s", deviceID}, args...)}
}

func (a *Android) ListCommand() runner.Command {
	return runner.Command{Tool: a.ADB, Args: []string{"devices", "-l"}}
}

func (a *Android) ParseListing(output string) []poller.Entry {
	return poller.ParseADBDevices(output)
}

func (a *Android) NameCommand(deviceID string) runner.Command {
	return a.adb(deviceID, "shell", "settings", "get", "global", "device_name")
}

func (a *Android) SlotCommand(slot types.Slot, deviceID string, p types.OperationParams) (runner.Command, error) {
	switch slot {
	case types.SlotMirror:
		args, err := scrcpyArgs(deviceID, p)
		if err != nil {
			return runner.Command{}, err
		}
		if p.AlwaysOnTop {
			args = append(args, "--always-on-top")
		}
		if p.Fullscreen {
			args = append(args, "--fullscreen")
		}
		if p.NoControl {
			args = append(args, "--no-control")
		}
		return runner.Command{Tool: a.Scrcpy, Args: args}, nil

	case types.SlotRecording:
		if p.RecordPath == "" {
			return runner.Command{}, fmt.Errorf("%w: record path is required", ErrInvalidParams)
		}
		args, err := scrcpyArgs(deviceID, p)
		if err != nil {
			return runner.Command{}, err
		}
		args = append(args, "--record", p.RecordPath, "--no-display")
		return runner.Command{Tool: a.Scrcpy, Args: args}, nil

	case types.SlotInstall:
		if err := requireFile(p.PackagePath, "package file"); err != nil {
			return runner.Command{}, err
		}
		return a.adb(deviceID, "install", "-r", p.PackagePath), nil

	case types.SlotLogStream:
		return a.adb(deviceID, "logcat", "-v", "time"), nil

	case types.SlotCommand:
		if len(p.Args) == 0 {
			return runner.Command{}, fmt.Errorf("%w: command is empty", ErrInvalidParams)
		}
		return a.adb(deviceID, p.Args...), nil
	}
	return runner.Command{}, unsupported(types.PlatformAndroid, string(slot))
}

// scrcpyArgs builds the device, size and bit rate flags shared by mirroring
// and recording. Bit rate is given in Mbps and passed in bits per second.
func scrcpyArgs(deviceID string, p types.OperationParams) ([]string, error) {
	if p.MaxSize < 0 {
		return nil, fmt.Errorf("%w: max size must not be negative", ErrInvalidParams)
	}
	if p.BitRateMbps < 0 {
		return nil, fmt.Errorf("%w: bit rate must not be negative", ErrInvalidParams)
	}
	args := []string{"-s", deviceID}
	if p.MaxSize > 0 {
		args = append(args, "--max-size", strconv.Itoa(p.MaxSize))
	}
	if p.BitRateMbps > 0 {
		args = append(args, "--video-bit-rate", strconv.Itoa(int(p.BitRateMbps*1000000)))
	}
	return args, nil
}

func (a *Android) InstallPlan(deviceID, packagePath string) (Plan, error) {
	if err := requireFile(packagePath, "package file"); err != nil {
		return Plan{}, err
	}
	return Plan{
		Op:      "install",
		Steps:   []Step{{Cmd: a.adb(deviceID, "install", "-r", packagePath), Expect: "Success"}},
		Timeout: 5 * time.Minute,
	}, nil
}

func (a *Android) UninstallPlan(deviceID, packageID string) (Plan, error) {
	if packageID == "" {
		return Plan{}, fmt.Errorf("%w: package name is required", ErrInvalidParams)
	}
	return Plan{
		Op:    "uninstall",
		Steps: []Step{{Cmd: a.adb(deviceID, "uninstall", packageID), Expect: "Success"}},
	}, nil
}

// ScreenshotPlan captures to a temporary file on the device, pulls it and
// removes the temporary file.
func (a *Android) ScreenshotPlan(deviceID, dest string) (Plan, error) {
	if dest == "" {
		return Plan{}, fmt.Errorf("%w: destination path is required", ErrInvalidParams)
	}
	remote := fmt.Sprintf("/sdcard/screenshot_%d.png", a.now().Unix())
	return Plan{
		Op: "screenshot",
		Steps: []Step{
			{Cmd: a.adb(deviceID, "shell", "screencap", "-p", remote)},
			{Cmd: a.adb(deviceID, "pull", remote, dest)},
			{Cmd: a.adb(deviceID, "shell", "rm", remote), BestEffort: true, Always: true},
		},
	}, nil
}

func (a *Android) RebootPlan(deviceID string) (Plan, error) {
	return Plan{Op: "reboot", Steps: []Step{{Cmd: a.adb(deviceID, "reboot")}}}, nil
}

// PackagesPlan lists third-party packages
func (a *Android) PackagesPlan(deviceID string) (Plan, error) {
	return Plan{Op: "list-packages", Steps: []Step{{Cmd: a.adb(deviceID, "shell", "pm", "list", "packages", "-3")}}}, nil
}

func (a *Android) InfoPlan(deviceID string) (Plan, error) {
	return Plan{Op: "device-info", Steps: []Step{{Cmd: a.adb(deviceID, "shell", "getprop")}}}, nil
}

func (a *Android) ParsePackages(output string) []types.AppPackage { return parsePMPackages(output) }

func (a *Android) ParseInfo(output string) map[string]string { return parseGetprop(output) }
