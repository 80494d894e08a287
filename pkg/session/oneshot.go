package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"DevPanel/pkg/logger"
	"DevPanel/pkg/notify"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/toolchain"
	"DevPanel/pkg/types"
)

// oneShot gates on the loop, then runs the plan on the caller's goroutine
// so a slow tool never stalls the loop. It returns the combined stdout of
// the plan's successful steps.
func (c *Controller) oneShot(op, deviceID string, build func(id string) (toolchain.Plan, error)) (string, string, error) {
	var (
		dev   types.Device
		plan  toolchain.Plan
		runID string
		err   error
	)
	callErr := c.call(func() {
		var kind types.FailureKind
		var detail string
		dev, kind, detail = c.gate(deviceID)
		if kind != types.FailureNone {
			err = c.reject(kind, "", op, dev.ID, detail, nil)
			return
		}
		var buildErr error
		if plan, buildErr = build(dev.ID); buildErr != nil {
			err = c.reject(KindOf(buildErr), "", op, dev.ID, "", buildErr)
			return
		}
		runID = uuid.New().String()
		c.emit(notify.Notification{Kind: notify.OperationStarted, Operation: op, RunID: runID, DeviceID: dev.ID})
	})
	if callErr != nil {
		return "", "", callErr
	}
	if err != nil {
		return "", dev.ID, err
	}

	timer := logger.StartOperation("session", op).AddDetail("deviceId", dev.ID).AddDetail("runId", runID)
	out, runErr := c.runPlan(plan)

	done := notify.Notification{Kind: notify.OperationCompleted, Operation: op, RunID: runID, DeviceID: dev.ID}
	if runErr != nil {
		timer.EndWithError(runErr)
		done.Failure = KindOf(runErr)
		done.Detail = runErr.Error()
		done.ExitCode = exitCode(runErr)
	} else {
		timer.End()
	}
	c.loop.Post(func() { c.emit(done) })
	return out, dev.ID, runErr
}

func (c *Controller) runPlan(plan toolchain.Plan) (string, error) {
	timeout := plan.Timeout
	if timeout <= 0 {
		timeout = c.opts.OneShotTimeout
	}
	var (
		stdout  strings.Builder
		planErr error
	)
	for _, step := range plan.Steps {
		if planErr != nil && !step.Always {
			continue
		}
		out, err := c.runner.Run(c.ctx, step.Cmd, timeout)
		if err == nil && step.Expect != "" && !strings.Contains(out.Combined(), step.Expect) {
			err = newError(types.FailureNonZeroExit, firstLine(out.Combined()), nil)
		}
		if err != nil {
			if step.BestEffort || planErr != nil {
				logger.LogDebug("session").Str("cmd", step.Cmd.String()).Err(err).Msg("Best-effort step failed")
				continue
			}
			planErr = err
			continue
		}
		if planErr == nil && out.Stdout != "" {
			if stdout.Len() > 0 && !strings.HasSuffix(stdout.String(), "\n") {
				stdout.WriteByte('\n')
			}
			stdout.WriteString(out.Stdout)
		}
	}
	return stdout.String(), planErr
}

// Install installs a package file on the device
func (c *Controller) Install(deviceID, packagePath string) error {
	_, _, err := c.oneShot("install", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.InstallPlan(id, packagePath)
	})
	return err
}

// Uninstall removes an app by package name or bundle id
func (c *Controller) Uninstall(deviceID, packageID string) error {
	_, _, err := c.oneShot("uninstall", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.UninstallPlan(id, packageID)
	})
	return err
}

// Screenshot saves a screenshot of the device to dest
func (c *Controller) Screenshot(deviceID, dest string) error {
	_, _, err := c.oneShot("screenshot", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.ScreenshotPlan(id, dest)
	})
	return err
}

// Reboot restarts the device. On success the selection is cleared if it
// pointed at the device, and a refresh is scheduled so the device shows
// up again once it is back.
func (c *Controller) Reboot(deviceID string) error {
	_, id, err := c.oneShot("reboot", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.RebootPlan(id)
	})
	if err != nil {
		return err
	}
	c.loop.Post(func() {
		if c.reg.SelectedID() == id {
			c.selectLocked("")
		}
		if c.refresher != nil {
			r := c.refresher
			time.AfterFunc(c.opts.RebootRefreshDelay, func() { r.RefreshNow() })
		}
	})
	return nil
}

// ListPackages returns the installed third-party apps
func (c *Controller) ListPackages(deviceID string) ([]types.AppPackage, error) {
	out, _, err := c.oneShot("list-packages", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.PackagesPlan(id)
	})
	if err != nil {
		return nil, err
	}
	return c.tc.ParsePackages(out), nil
}

// DeviceInfo returns the device's property dump
func (c *Controller) DeviceInfo(deviceID string) (types.DeviceInfo, error) {
	out, id, err := c.oneShot("device-info", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.InfoPlan(id)
	})
	if err != nil {
		return types.DeviceInfo{DeviceID: id}, err
	}
	return types.DeviceInfo{DeviceID: id, Props: c.tc.ParseInfo(out)}, nil
}

// ListFiles lists a directory on the device
func (c *Controller) ListFiles(deviceID, dir string) ([]types.FileEntry, error) {
	out, _, err := c.oneShot("list-files", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.ListFilesPlan(id, dir)
	})
	if err != nil {
		return nil, err
	}
	return c.tc.ParseFileList(dir, out), nil
}

// PushFile copies a local file onto the device
func (c *Controller) PushFile(deviceID, localPath, remotePath string) error {
	_, _, err := c.oneShot("push-file", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.PushFilePlan(id, localPath, remotePath)
	})
	return err
}

// PullFile copies a file from the device to localPath
func (c *Controller) PullFile(deviceID, remotePath, localPath string) error {
	_, _, err := c.oneShot("pull-file", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.PullFilePlan(id, remotePath, localPath)
	})
	return err
}

func (c *Controller) DeleteFile(deviceID, remotePath string) error {
	_, _, err := c.oneShot("delete-file", deviceID, func(id string) (toolchain.Plan, error) {
		return c.tc.DeleteFilePlan(id, remotePath)
	})
	return err
}

func exitCode(err error) int {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 0
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
