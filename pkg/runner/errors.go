package runner

import (
	"fmt"
	"strings"
	"time"
)

// SpawnError means the executable could not be started at all
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError means a bounded call ran past its deadline and was killed
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Path, e.Timeout)
}

// ExitError means the command ran but exited non-zero
type ExitError struct {
	Path   string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s exited with code %d", e.Path, e.Code)
	}
	if len(out) > 200 {
		out = out[:200] + "..."
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Path, e.Code, out)
}
