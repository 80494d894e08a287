//go:build windows

package runner

import "os/exec"

func setupProcess(cmd *exec.Cmd) {}

// terminateProcess kills outright: Windows has no interrupt for a process
// without a console.
func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
