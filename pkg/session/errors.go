package session

import (
	"context"
	"errors"
	"fmt"

	"DevPanel/pkg/dispatch"
	"DevPanel/pkg/runner"
	"DevPanel/pkg/toolchain"
	"DevPanel/pkg/types"
)

// Error is a rejected or failed operation
type Error struct {
	Kind   types.FailureKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind types.FailureKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf classifies any error returned by this module
func KindOf(err error) types.FailureKind {
	if err == nil {
		return types.FailureNone
	}
	var (
		sessErr    *Error
		spawnErr   *runner.SpawnError
		timeoutErr *runner.TimeoutError
		exitErr    *runner.ExitError
	)
	switch {
	case errors.As(err, &sessErr):
		return sessErr.Kind
	case errors.As(err, &spawnErr):
		return types.FailureSpawn
	case errors.As(err, &timeoutErr):
		return types.FailureTimeout
	case errors.As(err, &exitErr):
		return types.FailureNonZeroExit
	case errors.Is(err, toolchain.ErrInvalidParams):
		return types.FailureInvalidParams
	case errors.Is(err, toolchain.ErrUnsupported):
		return types.FailureUnsupported
	case errors.Is(err, context.Canceled):
		return types.FailureCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return types.FailureTimeout
	case errors.Is(err, dispatch.ErrStopped):
		return types.FailureInternal
	}
	return types.FailureInternal
}
