// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
)

const (
	// StateCreated indicates the component exists but Start has not been called.
	StateCreated State = iota
	// StateStarting indicates Start is in progress.
	StateStarting
	// StateRunning indicates the component finished starting.
	StateRunning
	// StateStopping indicates Stop is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: start failed or a fatal error occurred.
	StateFailed
)

var (
	// ErrInvalidState is returned when a State value is not a defined lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyStarted is returned by Starting when the machine left StateCreated.
	ErrAlreadyStarted = errors.New("already started")
)

type (
	// State is the lifecycle state of a component.
	State int32

	// InvalidStateError wraps ErrInvalidState with the offending value.
	InvalidStateError struct {
		Value State
	}
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validate returns an *InvalidStateError if s is not a defined state.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal reports whether s is StateStopped or StateFailed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=created .. 5=failed)", e.Value)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
