// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Machine tracks the lifecycle of a single-use component. Once stopped or
// failed, a component must be recreated.
type Machine struct {
	name  string
	state atomic.Int32

	mu      sync.Mutex
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	readyCh chan struct{}
	doneCh  chan struct{}
	done    sync.Once
	errCh   chan error
}

// New creates a Machine in StateCreated.
func New(opts ...Option) *Machine {
	m := &Machine{
		name:    "component",
		readyCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
		errCh:   make(chan error, 1),
	}
	m.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state without locking.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// IsRunning reports whether the machine is in StateRunning.
func (m *Machine) IsRunning() bool {
	return m.State() == StateRunning
}

// Err returns the channel on which asynchronous errors are published.
func (m *Machine) Err() <-chan error {
	return m.errCh
}

// Done is closed once the machine reaches a terminal state.
func (m *Machine) Done() <-chan struct{} {
	return m.doneCh
}

// Ready is closed once the machine reaches StateRunning.
func (m *Machine) Ready() <-chan struct{} {
	return m.readyCh
}

// LastError returns the error that moved the machine to StateFailed.
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Context is canceled when Stopping or Fail is called. It is nil before Starting.
func (m *Machine) Context() context.Context {
	return m.ctx
}

// Starting moves Created -> Starting. A machine that already left Created is
// rejected with ErrAlreadyStarted and left as it is; only the first call can
// fail the machine, which it does when ctx is already canceled.
func (m *Machine) Starting(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%s: cannot start in state %s: %w", m.name, m.State(), ErrAlreadyStarted)
	}
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("%s: context canceled before start: %w", m.name, err)
		m.Fail(err)
		return err
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return nil
}

// Running moves Starting -> Running and releases Ready waiters.
func (m *Machine) Running() {
	if m.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(m.readyCh)
	}
}

// Fail records err, moves the machine to StateFailed and publishes err on Err.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()

	m.state.Store(int32(StateFailed))
	if m.cancel != nil {
		m.cancel()
	}
	m.Report(err)
	m.finish()
}

// Stopping moves Starting/Running -> Stopping and cancels Context. It
// returns false when there is nothing to stop; a machine that was never
// started goes straight to StateStopped.
func (m *Machine) Stopping() bool {
	for {
		current := m.State()
		switch current {
		case StateCreated:
			if m.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				m.finish()
				return false
			}
		case StateStarting, StateRunning:
			if m.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				if m.cancel != nil {
					m.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// Stopped marks the machine terminal. Call it after tracked goroutines exit.
func (m *Machine) Stopped() {
	m.state.Store(int32(StateStopped))
	m.finish()
}

// WaitReady blocks until Running or ctx is done.
func (m *Machine) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-m.doneCh:
		return fmt.Errorf("%s: stopped before ready (state %s)", m.name, m.State())
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", m.name, ctx.Err())
	}
}

// Go runs fn in a goroutine tracked by Wait.
func (m *Machine) Go(fn func(ctx context.Context)) {
	m.wg.Add(1)
	ctx := m.ctx
	go func() {
		defer m.wg.Done()
		fn(ctx)
	}()
}

// Wait blocks until every goroutine started with Go has returned.
func (m *Machine) Wait() {
	m.wg.Wait()
}

// Report publishes err on Err without blocking; it is dropped when the buffer is full.
func (m *Machine) Report(err error) {
	select {
	case m.errCh <- err:
	default:
	}
}

func (m *Machine) finish() {
	m.done.Do(func() { close(m.doneCh) })
}
