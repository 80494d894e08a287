// Package executor runs streamed commands in the background and relays
// their output to the dispatch loop.
package executor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"DevPanel/pkg/dispatch"
	"DevPanel/pkg/logger"
	"DevPanel/pkg/runner"
)

// Handlers receive a run's output on the dispatch loop. OnLine is called
// once per line in emission order; OnComplete is called exactly once,
// after the last OnLine.
type Handlers struct {
	OnLine     func(runID, line string)
	OnComplete func(runID string, res runner.Result)
}

// Starter is the part of runner.Runner the executor needs
type Starter interface {
	Start(ctx context.Context, c runner.Command) (*runner.Process, error)
}

type Executor struct {
	loop   *dispatch.Loop
	runner Starter
}

func New(loop *dispatch.Loop, r Starter) *Executor {
	return &Executor{loop: loop, runner: r}
}

// Run is one streamed execution
type Run struct {
	ID        string
	Command   runner.Command
	StartedAt time.Time

	proc      *runner.Process
	cancelled atomic.Bool
}

// Start spawns c and returns once the process is running. A spawn failure
// is returned directly and no handler is called.
func (e *Executor) Start(ctx context.Context, c runner.Command, h Handlers) (*Run, error) {
	proc, err := e.runner.Start(ctx, c)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:        uuid.New().String(),
		Command:   c,
		StartedAt: time.Now(),
		proc:      proc,
	}
	logger.LogDebug("executor").Str("runId", run.ID).Str("cmd", c.String()).Msg("Run started")

	go e.relay(run, h)
	return run, nil
}

func (e *Executor) relay(run *Run, h Handlers) {
	for line := range run.proc.Lines() {
		line := line
		if h.OnLine != nil {
			e.loop.Post(func() { h.OnLine(run.ID, line) })
		}
	}
	res := run.proc.Wait()
	if run.cancelled.Load() {
		res.Cancelled = true
	}
	logger.LogDebug("executor").
		Str("runId", run.ID).
		Int("exitCode", res.ExitCode).
		Bool("cancelled", res.Cancelled).
		Msg("Run finished")
	if h.OnComplete != nil {
		if !e.loop.Post(func() { h.OnComplete(run.ID, res) }) {
			logger.LogDebug("executor").Str("runId", run.ID).Msg("Completion dropped, loop stopped")
		}
	}
}

// Cancel terminates the run. The completion is still delivered, marked
// cancelled. Repeated calls have no further effect.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
	r.proc.Terminate()
}

// Cancelled reports whether Cancel was called
func (r *Run) Cancelled() bool { return r.cancelled.Load() }

// Tail returns the most recent output lines
func (r *Run) Tail() []string { return r.proc.Tail() }

// Done is closed when the process has exited
func (r *Run) Done() <-chan struct{} { return r.proc.Done() }
