package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"DevPanel/pkg/runner"
	"DevPanel/pkg/runner/runnertest"
)

func TestMain(m *testing.M) {
	runnertest.Main()
	os.Exit(m.Run())
}

func collect(t *testing.T, p *runner.Process) []string {
	t.Helper()
	var lines []string
	timeout := time.After(10 * time.Second)
	for {
		select {
		case line, ok := <-p.Lines():
			if !ok {
				return lines
			}
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("timed out reading lines, got %v", lines)
		}
	}
}

func TestRunCapturesOutput(t *testing.T) {
	r := runner.New(nil)
	out, err := r.Run(context.Background(), runnertest.Command("echo", "List of devices attached", "ABC123\tdevice"), 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", out.ExitCode)
	}
	if !strings.Contains(out.Stdout, "ABC123\tdevice") {
		t.Errorf("Stdout = %q", out.Stdout)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := runner.New(nil)
	out, err := r.Run(context.Background(), runnertest.Command("exit", "3", "Failure [INSTALL_FAILED]"), 5*time.Second)

	var exitErr *runner.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T: %v", err, err)
	}
	if exitErr.Code != 3 || out.ExitCode != 3 {
		t.Errorf("exit code = %d/%d, want 3", exitErr.Code, out.ExitCode)
	}
	if !strings.Contains(exitErr.Output, "INSTALL_FAILED") {
		t.Errorf("ExitError output missing text: %q", exitErr.Output)
	}
}

func TestRunTimeoutKills(t *testing.T) {
	r := runner.New(nil)
	start := time.Now()
	_, err := r.Run(context.Background(), runnertest.Command("sleep", "10s"), 200*time.Millisecond)

	var timeoutErr *runner.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %s, process was not killed", elapsed)
	}
}

func TestRunSpawnError(t *testing.T) {
	r := runner.New(nil)
	_, err := r.Run(context.Background(), runner.Command{Tool: "devpanel-no-such-tool-xyz"}, time.Second)

	var spawnErr *runner.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
	if spawnErr.Path != "devpanel-no-such-tool-xyz" {
		t.Errorf("Path = %q", spawnErr.Path)
	}
}

func TestRunStripsProxyEnv(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://proxy.invalid:8080")
	r := runner.New(nil)
	out, err := r.Run(context.Background(), runnertest.Command("env", "HTTP_PROXY"), 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(out.Stdout) != "" {
		t.Errorf("HTTP_PROXY leaked into child: %q", out.Stdout)
	}
}

func TestStartStreamsLinesInOrder(t *testing.T) {
	r := runner.New(nil)
	p, err := r.Start(context.Background(), runnertest.Command("lines", "50"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	lines := collect(t, p)
	res := p.Wait()

	if len(lines) != 50 {
		t.Fatalf("got %d lines, want 50", len(lines))
	}
	for i, line := range lines {
		if want := "line-" + strconv.Itoa(i+1); line != want {
			t.Fatalf("line %d = %q, want %q", i, line, want)
		}
	}
	if !res.Success() {
		t.Errorf("Result = %+v, want success", res)
	}
}

func TestStartMergesStderr(t *testing.T) {
	r := runner.New(nil)
	p, err := r.Start(context.Background(), runnertest.Command("stderr", "adb: device offline"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	lines := collect(t, p)
	p.Wait()
	if len(lines) != 1 || lines[0] != "adb: device offline" {
		t.Errorf("lines = %v", lines)
	}
}

func TestStartTailIsBounded(t *testing.T) {
	r := runner.New(nil, runner.WithTailLines(5))
	p, err := r.Start(context.Background(), runnertest.Command("lines", "20"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collect(t, p)
	res := p.Wait()
	if len(res.Tail) != 5 || res.Tail[0] != "line-16" || res.Tail[4] != "line-20" {
		t.Errorf("Tail = %v", res.Tail)
	}
}

func TestStartSpawnError(t *testing.T) {
	r := runner.New(nil)
	_, err := r.Start(context.Background(), runner.Command{Tool: "devpanel-no-such-tool-xyz"})
	var spawnErr *runner.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected *SpawnError, got %T: %v", err, err)
	}
}

func TestTerminateSendsOneSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no interrupt delivery on windows")
	}
	r := runner.New(nil, runner.WithGrace(5*time.Second))
	p, err := r.Start(context.Background(), runnertest.Command("trap", "10s"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first := <-p.Lines(); first != "started" {
		t.Fatalf("first line = %q", first)
	}

	p.Terminate()
	p.Terminate()
	p.Terminate()

	lines := collect(t, p)
	res := p.Wait()

	count := 0
	for _, l := range lines {
		if l == "interrupted" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("process saw %d interrupts, want 1 (lines %v)", count, lines)
	}
	if !res.Cancelled {
		t.Error("expected Cancelled result")
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("terminate already kills on windows")
	}
	r := runner.New(nil, runner.WithGrace(200*time.Millisecond))
	p, err := r.Start(context.Background(), runnertest.Command("stubborn", "30s"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-p.Lines()
	p.Terminate()

	go drain(p)
	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process survived escalation")
	}
	if res := p.Wait(); !res.Cancelled || res.Success() {
		t.Errorf("Result = %+v", res)
	}
}

func TestTerminateAfterExitIsNoop(t *testing.T) {
	r := runner.New(nil)
	p, err := r.Start(context.Background(), runnertest.Command("lines", "1"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	collect(t, p)
	res := p.Wait()
	p.Terminate()
	if !res.Success() {
		t.Errorf("Result = %+v", res)
	}
}

func TestContextCancelTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(nil, runner.WithGrace(200*time.Millisecond))
	p, err := r.Start(ctx, runnertest.Command("sleep", "30s"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-p.Lines()
	cancel()
	go drain(p)
	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("context cancel did not stop the process")
	}
	if !p.Wait().Cancelled {
		t.Error("expected Cancelled result")
	}
}

func TestResolverPrefersLocalDir(t *testing.T) {
	dir := t.TempDir()
	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}
	local := filepath.Join(dir, name)
	if err := os.WriteFile(local, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	r := runner.NewResolver(filepath.Join(dir, "missing"), dir)
	if got := r.Resolve("adb"); got != local {
		t.Errorf("Resolve(adb) = %q, want %q", got, local)
	}
	if got := r.Resolve("scrcpy"); got != "scrcpy" {
		t.Errorf("Resolve(scrcpy) = %q, want bare name", got)
	}
	if got := r.Resolve("/usr/bin/adb"); got != "/usr/bin/adb" {
		t.Errorf("paths must pass through, got %q", got)
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &runner.ExitError{Path: "adb", Code: 1, Output: "  error: device not found\n"}
	if got := err.Error(); got != "adb exited with code 1: error: device not found" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&runner.ExitError{Path: "adb", Code: 2}).Error(); got != "adb exited with code 2" {
		t.Errorf("Error() = %q", got)
	}
}

func drain(p *runner.Process) {
	for range p.Lines() {
	}
}
