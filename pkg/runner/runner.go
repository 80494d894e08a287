// Package runner launches external device tools and reports their output
// and exit status. It knows nothing about devices.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"DevPanel/pkg/logger"
)

const (
	DefaultGrace     = 3 * time.Second
	DefaultTailLines = 200

	// waitDelay bounds how long Wait blocks on pipes held open by a
	// grandchild (adb forks its server daemon) after the child exits.
	waitDelay = 2 * time.Second
)

// Command is one tool invocation. Tool is a logical name resolved through
// the Resolver, or a path.
type Command struct {
	Tool string
	Args []string
	Dir  string
	Env  []string // appended to the cleaned parent environment
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Tool
	}
	return c.Tool + " " + strings.Join(c.Args, " ")
}

// Output is what a bounded call captured
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr
func (o Output) Combined() string {
	if o.Stderr == "" {
		return o.Stdout
	}
	if o.Stdout == "" {
		return o.Stderr
	}
	return o.Stdout + "\n" + o.Stderr
}

// Runner starts commands with a resolved path and a proxy-free environment
type Runner struct {
	resolver  *Resolver
	grace     time.Duration
	tailLines int
}

type Option func(*Runner)

// WithGrace sets how long Terminate waits before killing a process
func WithGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// WithTailLines sets how many trailing lines a streamed Result keeps
func WithTailLines(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.tailLines = n
		}
	}
}

func New(resolver *Resolver, opts ...Option) *Runner {
	if resolver == nil {
		resolver = NewResolver()
	}
	r := &Runner{resolver: resolver, grace: DefaultGrace, tailLines: DefaultTailLines}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the path a command for tool would execute
func (r *Runner) Resolve(tool string) string {
	return r.resolver.Resolve(tool)
}

func (r *Runner) newCmd(ctx context.Context, c Command) (*exec.Cmd, string) {
	path := r.resolver.Resolve(c.Tool)
	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Cancel = func() error { return killProcess(cmd) }
	cmd.Dir = c.Dir
	cmd.Env = cleanEnv(os.Environ(), c.Env)
	cmd.WaitDelay = waitDelay
	setupProcess(cmd)
	return cmd, path
}

// Run executes c to completion and captures its output. A positive timeout
// bounds the call; the process is killed when it expires. Failures come
// back as *SpawnError, *TimeoutError or *ExitError.
func (r *Runner) Run(ctx context.Context, c Command, timeout time.Duration) (Output, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd, path := r.newCmd(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		logger.LogDebug("runner").Str("path", path).Err(err).Msg("Spawn failed")
		return Output{}, &SpawnError{Path: path, Err: err}
	}
	err := cmd.Wait()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.ExitCode = -1
			return out, &TimeoutError{Path: path, Timeout: timeout}
		}
		if ctx.Err() != nil {
			out.ExitCode = -1
			return out, fmt.Errorf("%s: %w", path, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, &ExitError{Path: path, Code: out.ExitCode, Output: out.Combined()}
		}
		if !errors.Is(err, exec.ErrWaitDelay) {
			return out, fmt.Errorf("%s: %w", path, err)
		}
	}
	return out, nil
}
