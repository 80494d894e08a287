//go:build !windows

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"
)

func TestSignalGroupAfterReapIsRefused(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	setupProcess(cmd)
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}

	if err := terminateProcess(cmd); err != nil {
		t.Fatalf("terminateProcess: %v", err)
	}
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Wait = %v, want signal exit", err)
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); !ok || ws.Signal() != syscall.SIGINT {
		t.Errorf("wait status = %v", exitErr.Sys())
	}

	if err := terminateProcess(cmd); !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("terminate after reap = %v, want ErrProcessDone", err)
	}
	if err := killProcess(cmd); !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("kill after reap = %v, want ErrProcessDone", err)
	}
}
