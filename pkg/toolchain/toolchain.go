// Package toolchain builds the command lines for each supported device
// platform.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/poller"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/types"
)

var (
	ErrUnsupported   = errors.New("not supported on this platform")
	ErrInvalidParams = errors.New("invalid parameters")
)

// Step is one command of a one-shot operation
type Step struct {
	Cmd runner.Command
	// Expect must appear in stdout for the step to count as successful;
	// some tools exit 0 on failure.
	Expect string
	// BestEffort steps may fail without failing the operation
	BestEffort bool
	// Always marks cleanup: the step still runs after an earlier step
	// failed, and its own failure never replaces that one.
	Always bool
}

// Plan is a one-shot operation: steps run in order and the first failure
// skips the rest, except Always steps. The stdout of every successful step
// is concatenated into the result. A zero Timeout means the caller's
// default applies per step.
type Plan struct {
	Op      string
	Steps   []Step
	Timeout time.Duration
}

// Tool is an executable a toolchain depends on
type Tool struct {
	Name        string
	VersionArgs []string
}

// Toolchain knows how to list devices and build every operation for one
// platform.
type Toolchain interface {
	poller.Source

	Platform() types.Platform
	Tools() []Tool

	// SlotCommand builds the long-running command for slot. It fails with
	// ErrUnsupported or ErrInvalidParams.
	SlotCommand(slot types.Slot, deviceID string, params types.OperationParams) (runner.Command, error)

	InstallPlan(deviceID, packagePath string) (Plan, error)
	UninstallPlan(deviceID, packageID string) (Plan, error)
	ScreenshotPlan(deviceID, dest string) (Plan, error)
	RebootPlan(deviceID string) (Plan, error)
	PackagesPlan(deviceID string) (Plan, error)
	InfoPlan(deviceID string) (Plan, error)

	// Remote file browser
	ListFilesPlan(deviceID, dir string) (Plan, error)
	PushFilePlan(deviceID, localPath, remotePath string) (Plan, error)
	PullFilePlan(deviceID, remotePath, localPath string) (Plan, error)
	DeleteFilePlan(deviceID, remotePath string) (Plan, error)

	ParsePackages(output string) []types.AppPackage
	ParseInfo(output string) map[string]string
	ParseFileList(dir, output string) []types.FileEntry
}

// For returns the toolchain for platform
func For(platform types.Platform) (Toolchain, error) {
	switch platform {
	case types.PlatformAndroid:
		return NewAndroid(), nil
	case types.PlatformIOS:
		return NewIOS(), nil
	}
	return nil, fmt.Errorf("%w: platform %q", ErrUnsupported, platform)
}

// ToolStatus is the outcome of probing one tool
type ToolStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Prober runs bounded commands and resolves tool paths
type Prober interface {
	Run(ctx context.Context, c runner.Command, timeout time.Duration) (runner.Output, error)
	Resolve(tool string) string
}

// CheckTools runs each tool's version command once. A tool counts as
// available when it could be started, whatever its exit code.
func CheckTools(ctx context.Context, p Prober, tc Toolchain) []ToolStatus {
	var out []ToolStatus
	for _, tool := range tc.Tools() {
		st := ToolStatus{Name: tool.Name, Path: p.Resolve(tool.Name)}
		res, err := p.Run(ctx, runner.Command{Tool: tool.Name, Args: tool.VersionArgs}, 5*time.Second)

		var spawnErr *runner.SpawnError
		switch {
		case errors.As(err, &spawnErr):
			st.Error = spawnErr.Err.Error()
		case err != nil && !isExitError(err):
			st.Error = err.Error()
		default:
			st.Available = true
			st.Version = firstLine(res.Combined())
		}
		if !st.Available {
			logger.LogWarn("toolchain").Str("tool", tool.Name).Str("path", st.Path).Str("error", st.Error).Msg("Tool not available")
		}
		out = append(out, st)
	}
	return out
}

func isExitError(err error) bool {
	var exitErr *runner.ExitError
	return errors.As(err, &exitErr)
}

func requireFile(path, what string) error {
	if path == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidParams, what)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidParams, what, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s %q is a directory", ErrInvalidParams, what, path)
	}
	return nil
}

func requireDir(path, what string) error {
	if path == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidParams, what)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidParams, what, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s %q is not a directory", ErrInvalidParams, what, path)
	}
	return nil
}

func unsupported(platform types.Platform, op string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupported, op, platform)
}
