// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultInterval is the poll period when none is configured.
	DefaultInterval = time.Second

	// DisabledStopDelay is how long a disabled engine stays "running"
	// before it stops itself.
	DisabledStopDelay = 100 * time.Millisecond
)

type (
	options struct {
		interval        time.Duration
		allowOverlap    bool
		bootstrap       bool
		disabled        bool
		ignore          []string
		logger          *log.Logger
		backend         BackendFactory
		queueLimit      int
		callbackTimeout time.Duration
	}

	// Option configures an Engine.
	Option func(*options)
)

func defaultOptions() options {
	return options{
		interval:     DefaultInterval,
		allowOverlap: true,
		bootstrap:    true,
		backend:      FSNotify,
		queueLimit:   DefaultQueueLimit,
	}
}

// WithInterval sets the poll period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithOverlap controls whether a tick may start a cycle while the previous
// cycle's callbacks are still running. Enabled by default.
func WithOverlap(allow bool) Option {
	return func(o *options) { o.allowOverlap = allow }
}

// WithBootstrap controls whether content present at start produces created
// and modified callbacks. Enabled by default.
func WithBootstrap(enabled bool) Option {
	return func(o *options) { o.bootstrap = enabled }
}

// WithDisabled makes Start succeed without watching anything; the engine
// stops itself shortly after.
func WithDisabled(disabled bool) Option {
	return func(o *options) { o.disabled = disabled }
}

// WithIgnore skips paths whose root-relative, slash-separated form matches
// any of the doublestar patterns. Ignored directories are never registered.
func WithIgnore(patterns ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, patterns...) }
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBackend replaces the native primitive, FSNotify by default.
func WithBackend(factory BackendFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.backend = factory
		}
	}
}

// WithQueueLimit bounds the events buffered per directory between drains.
func WithQueueLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueLimit = n
		}
	}
}

// WithCallbackTimeout bounds how long a cycle waits for one callback. When
// it expires the path fails with ErrCallbackTimeout and the callback keeps
// running unobserved. Zero, the default, waits forever.
func WithCallbackTimeout(d time.Duration) Option {
	return func(o *options) { o.callbackTimeout = d }
}
