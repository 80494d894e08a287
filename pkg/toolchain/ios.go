package toolchain

import (
	"fmt"
	"strings"

	"DevPanel/pkg/poller"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/types"
)

// IOS drives devices through the libimobiledevice command-line tools
type IOS struct{}

func NewIOS() *IOS { return &IOS{} }

func (i *IOS) Platform() types.Platform { return types.PlatformIOS }

func (i *IOS) Tools() []Tool {
	names := []string{"idevice_id", "ideviceinfo", "idevicebackup2", "ideviceinstaller", "idevicesyslog", "idevicescreenshot", "idevicediagnostics", "idevicefs"}
	tools := make([]Tool, len(names))
	for n, name := range names {
		tools[n] = Tool{Name: name, VersionArgs: []string{"--version"}}
	}
	return tools
}

func tool(name, deviceID string, args ...string) runner.Command {
	return runner.Command{Tool: name, Args: append([]string{"-u", deviceID}, args...)}
}

func (i *IOS) ListCommand() runner.Command {
	return runner.Command{Tool: "idevice_id", Args: []string{"-l"}}
}

func (i *IOS) ParseListing(output string) []poller.Entry {
	return poller.ParseUDIDList(output)
}

func (i *IOS) NameCommand(deviceID string) runner.Command {
	return tool("ideviceinfo", deviceID, "-k", "DeviceName")
}

func (i *IOS) SlotCommand(slot types.Slot, deviceID string, p types.OperationParams) (runner.Command, error) {
	switch slot {
	case types.SlotBackup:
		if err := requireDir(p.BackupDir, "backup directory"); err != nil {
			return runner.Command{}, err
		}
		return tool("idevicebackup2", deviceID, "backup", "--full", p.BackupDir), nil

	case types.SlotInstall:
		if err := requireFile(p.PackagePath, "package file"); err != nil {
			return runner.Command{}, err
		}
		return tool("ideviceinstaller", deviceID, "-i", p.PackagePath), nil

	case types.SlotLogStream:
		return tool("idevicesyslog", deviceID), nil

	case types.SlotCommand:
		// only libimobiledevice tools may be run against the device
		if len(p.Args) == 0 {
			return runner.Command{}, fmt.Errorf("%w: command is empty", ErrInvalidParams)
		}
		if !strings.HasPrefix(p.Args[0], "idevice") {
			return runner.Command{}, fmt.Errorf("%w: %q is not a libimobiledevice tool", ErrInvalidParams, p.Args[0])
		}
		return tool(p.Args[0], deviceID, p.Args[1:]...), nil
	}
	return runner.Command{}, unsupported(types.PlatformIOS, string(slot))
}

func (i *IOS) InstallPlan(deviceID, packagePath string) (Plan, error) {
	if err := requireFile(packagePath, "package file"); err != nil {
		return Plan{}, err
	}
	return Plan{Op: "install", Steps: []Step{{Cmd: tool("ideviceinstaller", deviceID, "-i", packagePath)}}}, nil
}

func (i *IOS) UninstallPlan(deviceID, bundleID string) (Plan, error) {
	if bundleID == "" {
		return Plan{}, fmt.Errorf("%w: bundle id is required", ErrInvalidParams)
	}
	return Plan{Op: "uninstall", Steps: []Step{{Cmd: tool("ideviceinstaller", deviceID, "-U", bundleID)}}}, nil
}

func (i *IOS) ScreenshotPlan(deviceID, dest string) (Plan, error) {
	if dest == "" {
		return Plan{}, fmt.Errorf("%w: destination path is required", ErrInvalidParams)
	}
	return Plan{Op: "screenshot", Steps: []Step{{Cmd: tool("idevicescreenshot", deviceID, dest)}}}, nil
}

func (i *IOS) RebootPlan(deviceID string) (Plan, error) {
	return Plan{Op: "reboot", Steps: []Step{{Cmd: tool("idevicediagnostics", deviceID, "restart")}}}, nil
}

func (i *IOS) PackagesPlan(deviceID string) (Plan, error) {
	return Plan{Op: "list-packages", Steps: []Step{{Cmd: tool("ideviceinstaller", deviceID, "-l")}}}, nil
}

// InfoPlan dumps the lockdown values and then the battery domain. Older
// devices refuse the battery query, so it is best effort.
func (i *IOS) InfoPlan(deviceID string) (Plan, error) {
	return Plan{Op: "device-info", Steps: []Step{
		{Cmd: tool("ideviceinfo", deviceID)},
		{Cmd: tool("ideviceinfo", deviceID, "-q", "com.apple.mobile.battery"), BestEffort: true},
	}}, nil
}

func (i *IOS) ParsePackages(output string) []types.AppPackage { return parseInstallerList(output) }

func (i *IOS) ParseInfo(output string) map[string]string { return parseKeyValue(output) }
