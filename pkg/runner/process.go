package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"DevPanel/pkg/logger"
)

// Result is the final status of a streamed process. It is produced exactly
// once, after the last line.
type Result struct {
	ExitCode  int
	Tail      []string
	Cancelled bool
	Err       error
}

// Success reports a clean zero exit that nobody asked to stop
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.Cancelled
}

// Process is a running streamed command. Callers must drain Lines until it
// is closed; the child blocks on its pipe otherwise.
type Process struct {
	cmd   *exec.Cmd
	path  string
	grace time.Duration

	lines chan string
	done  chan struct{}
	tail  *tailBuffer

	result     Result
	termOnce   sync.Once
	terminated atomic.Bool
	startedAt  time.Time
}

// Start launches c with stdout and stderr merged into one line stream.
// Cancelling ctx terminates the process.
func (r *Runner) Start(ctx context.Context, c Command) (*Process, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// ctx only triggers Terminate below; the exec context never cancels so
	// stopping always goes through the graceful path.
	cmd, path := r.newCmd(context.Background(), c)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		logger.LogDebug("runner").Str("path", path).Err(err).Msg("Spawn failed")
		return nil, &SpawnError{Path: path, Err: err}
	}

	p := &Process{
		cmd:       cmd,
		path:      path,
		grace:     r.grace,
		lines:     make(chan string, 64),
		done:      make(chan struct{}),
		tail:      newTailBuffer(r.tailLines),
		startedAt: time.Now(),
	}
	logger.ProcessLog().Str("path", path).Int("pid", cmd.Process.Pid).Msg("Process started")

	go p.pump(stdout)
	go func() {
		select {
		case <-ctx.Done():
			p.Terminate()
		case <-p.done:
		}
	}()
	return p, nil
}

func (p *Process) pump(stdout io.Reader) {
	linesOpen := true
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			if linesOpen {
				close(p.lines)
			}
			logger.LogError("runner").Str("path", p.path).Interface("panic", r).Msg("Output reader panicked")
			_ = killProcess(p.cmd)
			p.result = Result{ExitCode: -1, Tail: p.tail.snapshot(), Err: fmt.Errorf("output reader panic: %v", r)}
		}
	}()

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			p.tail.add(line)
			p.lines <- line
		}
		if err != nil {
			break
		}
	}
	close(p.lines)
	linesOpen = false

	waitErr := p.cmd.Wait()
	res := Result{Tail: p.tail.snapshot(), Cancelled: p.terminated.Load()}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.Is(waitErr, exec.ErrWaitDelay):
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = waitErr
	}
	p.result = res

	logger.ProcessLog().
		Str("path", p.path).
		Int("exitCode", res.ExitCode).
		Bool("cancelled", res.Cancelled).
		Dur("duration", time.Since(p.startedAt)).
		Msg("Process exited")
}

// Lines yields output lines in emission order and closes at EOF
func (p *Process) Lines() <-chan string { return p.lines }

// Done is closed once the Result is available
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process has exited and returns its Result
func (p *Process) Wait() Result {
	<-p.done
	return p.result
}

// Tail returns the most recent output lines
func (p *Process) Tail() []string { return p.tail.snapshot() }

func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate asks the process to stop, then kills it if it is still alive
// after the grace period. Only the first call sends a signal. Terminating
// an already exited process is not an error.
func (p *Process) Terminate() {
	p.termOnce.Do(func() {
		p.terminated.Store(true)
		select {
		case <-p.done:
			return
		default:
		}

		if err := terminateProcess(p.cmd); err != nil {
			if isFinished(err) {
				return
			}
			logger.LogDebug("runner").Str("path", p.path).Err(err).Msg("Graceful stop failed, killing")
			_ = killProcess(p.cmd)
			return
		}
		if p.grace <= 0 {
			return
		}

		timer := time.NewTimer(p.grace)
		go func() {
			defer timer.Stop()
			select {
			case <-p.done:
			case <-timer.C:
				logger.LogWarn("runner").Str("path", p.path).Dur("grace", p.grace).Msg("Process ignored stop signal, killing")
				if err := killProcess(p.cmd); err != nil && !isFinished(err) {
					logger.LogError("runner").Str("path", p.path).Err(err).Msg("Kill failed")
				}
			}
		}()
	})
}

func isFinished(err error) bool {
	if errors.Is(err, os.ErrProcessDone) {
		return true
	}
	return strings.Contains(err.Error(), "already finished")
}
