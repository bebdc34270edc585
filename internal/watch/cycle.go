// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

func (e *Engine) poll(ctx context.Context) {
	ticker := time.NewTicker(e.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick starts one cycle in the background. Without overlap, a tick that
// finds a cycle in flight is skipped; its events wait for a later cycle.
func (e *Engine) tick() {
	if e.opts.allowOverlap {
		e.counters.cyclesStarted.Add(1)
		go e.cycle()
		return
	}

	if !e.cycling.CompareAndSwap(0, 1) {
		e.counters.cyclesSkipped.Add(1)
		return
	}
	e.counters.cyclesStarted.Add(1)
	go func() {
		defer e.cycling.Store(0)
		e.cycle()
	}()
}

// cycle drains every registered directory concurrently and returns once
// all of them settled.
func (e *Engine) cycle() {
	var wg conc.WaitGroup
	for _, reg := range e.snapshot() {
		wg.Go(func() { e.drain(reg) })
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		e.logger.Error("poll cycle panicked", "panic", recovered.Value)
	}
}

// drain dispatches one directory's batch in order and re-arms that same
// registration once every callback returned.
func (e *Engine) drain(reg Registration) {
	events := reg.Drain()
	if len(events) == 0 {
		return
	}
	defer reg.Rearm()

	for _, ev := range events {
		e.handle(reg.Dir(), ev)
	}
}

// handle dispatches one raw event; failures stay local to its path.
func (e *Engine) handle(dir string, ev RawEvent) {
	path := dir
	if ev.Name != "" {
		path = filepath.Join(dir, ev.Name)
	}
	if err := e.dispatch(ev.Kind, path); err != nil {
		e.counters.callbackFailures.Add(1)
		e.logger.Error("callback failed", "event", ev.Kind.String(), "path", path, "error", err)
	}
}

func (e *Engine) dispatch(kind Kind, path string) error {
	if kind != KindOverflow && kind != KindOther && e.ignored(path) {
		return nil
	}

	switch kind {
	case KindCreated:
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("watch: inspect created %q: %w", path, err)
		}
		if info.IsDir() {
			if err := e.register(path); err != nil {
				return err
			}
		}
		return e.invoke(e.callbackCtx, kind, path, e.handler.Created)
	case KindDeleted:
		e.unregister(path)
		return e.invoke(e.callbackCtx, kind, path, e.handler.Deleted)
	case KindModified:
		return e.invoke(e.callbackCtx, kind, path, e.handler.Modified)
	case KindOverflow:
		e.counters.overflows.Add(1)
		e.logger.Debug("native queue overflowed, events lost", "dir", path)
		return nil
	default:
		e.logger.Warn("unexpected native event", "kind", kind.String(), "path", path)
		return nil
	}
}

// invoke runs one callback, turning a panic into an error and enforcing the
// optional callback timeout.
func (e *Engine) invoke(ctx context.Context, kind Kind, path string, fn func(context.Context, string) error) error {
	e.counters.eventsDispatched.Add(1)

	call := func() (err error) {
		if recovered := panics.Try(func() { err = fn(ctx, path) }); recovered != nil {
			return fmt.Errorf("watch: %s callback for %q panicked: %w", kind, path, recovered.AsError())
		}
		return err
	}

	if e.opts.callbackTimeout <= 0 {
		return call()
	}

	done := make(chan error, 1)
	go func() { done <- call() }()

	timer := time.NewTimer(e.opts.callbackTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w after %s: %s %q", ErrCallbackTimeout, e.opts.callbackTimeout, kind, path)
	}
}
