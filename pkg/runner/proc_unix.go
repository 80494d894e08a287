//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setupProcess puts the child in its own process group so stopping it also
// stops anything it spawned. With Setpgid the group id equals the pid.
func setupProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess sends SIGINT to the process group. scrcpy finalizes its
// recording on SIGINT.
func terminateProcess(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGINT)
}

func killProcess(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

// signalGroup refuses to signal once the child has been reaped, since its
// pid may already belong to something else.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
		return err
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		return cmd.Process.Signal(sig)
	}
	return nil
}
