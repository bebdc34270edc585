// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/invowk/modwatch/internal/core/lifecycle"
)

// ErrCallbackTimeout is the per-path failure reported when a callback
// outlives the configured callback timeout.
var ErrCallbackTimeout = errors.New("watch: callback timed out")

// Engine watches one root directory tree and drives a Handler from poll
// cycles. An Engine is single-use: once stopped, create a new one.
type Engine struct {
	root    string
	handler Handler
	opts    options
	logger  *log.Logger
	machine *lifecycle.Machine

	backend Backend

	mu            sync.RWMutex
	registrations map[string]Registration

	// cycling is 1 while a non-overlapping cycle is in flight.
	cycling atomic.Int32

	// callbackCtx is handed to every callback; Stop does not cancel it.
	callbackCtx context.Context

	counters counters
}

// New creates an Engine for root. The root is made absolute here and never
// resolved again.
func New(root string, handler Handler, opts ...Option) (*Engine, error) {
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	if root == "" {
		return nil, errors.New("watch: root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root %q: %w", root, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidatePatterns(o.ignore); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}

	return &Engine{
		root:          filepath.Clean(abs),
		handler:       handler,
		opts:          o,
		logger:        logger,
		machine:       lifecycle.New(lifecycle.WithName("watch engine"), lifecycle.WithErrorBuffer(4)),
		registrations: make(map[string]Registration),
	}, nil
}

// Root returns the absolute watch root.
func (e *Engine) Root() string { return e.root }

// State returns the lifecycle state.
func (e *Engine) State() lifecycle.State { return e.machine.State() }

// Err delivers asynchronous fatal errors such as native watch exhaustion.
func (e *Engine) Err() <-chan error { return e.machine.Err() }

// Done is closed once the engine stopped or failed.
func (e *Engine) Done() <-chan struct{} { return e.machine.Done() }

// Start opens the native primitive, registers the tree (bootstrapping
// existing content when enabled) and starts polling. It returns once the
// initial registration and every bootstrap callback finished.
//
// Only the first call can succeed.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.machine.Starting(ctx); err != nil {
		return err
	}
	e.callbackCtx = context.WithoutCancel(ctx)

	if e.opts.disabled {
		e.logger.Info("watching disabled, engine will stop", "root", e.root)
		e.machine.Running()
		time.AfterFunc(DisabledStopDelay, func() {
			if err := e.Stop(); err != nil {
				e.logger.Warn("stop after disabled start", "error", err)
			}
		})
		return nil
	}

	backend, err := e.opts.backend(e.root, BackendOptions{
		Logger:     e.logger,
		QueueLimit: e.opts.queueLimit,
		OnFatal:    e.machine.Report,
	})
	if err != nil {
		err = fmt.Errorf("watch: open backend for %q: %w", e.root, err)
		e.machine.Fail(err)
		return err
	}
	e.backend = backend

	if e.opts.bootstrap {
		err = e.bootstrap(ctx)
	} else {
		err = e.register(e.root)
	}
	if err != nil {
		if closeErr := backend.Close(); closeErr != nil {
			e.logger.Debug("close backend after failed start", "error", closeErr)
		}
		e.machine.Fail(err)
		return err
	}

	e.machine.Go(e.poll)
	e.machine.Running()
	e.logger.Info("watching", "root", e.root, "interval", e.opts.interval,
		"overlap", e.opts.allowOverlap, "directories", len(e.Watched()))
	return nil
}

// Stop halts the ticker and closes the native primitive. Callbacks already
// running are not canceled and may finish after Stop returns. A close
// failure is returned as the stop failure.
func (e *Engine) Stop() error {
	if !e.machine.Stopping() {
		return nil
	}
	e.machine.Wait()

	var err error
	if e.backend != nil {
		if closeErr := e.backend.Close(); closeErr != nil {
			err = fmt.Errorf("watch: close backend: %w", closeErr)
		}
	}
	e.machine.Stopped()
	e.logger.Info("stopped", "root", e.root)
	return err
}

// Watched returns the registered directories in lexical order.
func (e *Engine) Watched() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.registrations))
}

// register adds a registration for dir unless one exists.
func (e *Engine) register(dir string) error {
	e.mu.RLock()
	_, ok := e.registrations[dir]
	e.mu.RUnlock()
	if ok {
		return nil
	}

	reg, err := e.backend.Register(dir)
	if err != nil {
		return fmt.Errorf("watch: register %q: %w", dir, err)
	}

	e.mu.Lock()
	e.registrations[dir] = reg
	e.mu.Unlock()
	e.logger.Debug("registered directory", "dir", dir)
	return nil
}

// unregister cancels and drops the registration for path and for every
// directory below it.
//
// Events the directory queued before it went away are delivered here even
// when its previous batch is still in flight. Descendants left registered
// afterwards belong to a directory moved out of the root and are dropped.
func (e *Engine) unregister(path string) {
	e.mu.Lock()
	reg, ok := e.registrations[path]
	delete(e.registrations, path)
	e.mu.Unlock()
	if !ok {
		return
	}
	pending, err := reg.Cancel()
	if err != nil {
		e.logger.Debug("cancel registration", "dir", path, "error", err)
	}
	for _, ev := range pending {
		e.handle(path, ev)
	}
	e.logger.Debug("unregistered directory", "dir", path)

	for _, dir := range e.registeredBelow(path) {
		e.unregister(dir)
	}
}

// registeredBelow lists the registered directories strictly under path,
// parents first.
func (e *Engine) registeredBelow(path string) []string {
	prefix := path + string(filepath.Separator)

	e.mu.RLock()
	defer e.mu.RUnlock()
	var dirs []string
	for dir := range e.registrations {
		if strings.HasPrefix(dir, prefix) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)
	return dirs
}

// snapshot copies the registrations so a cycle can iterate while
// created/deleted handling mutates the map.
func (e *Engine) snapshot() map[string]Registration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.registrations)
}
