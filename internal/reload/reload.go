// SPDX-License-Identifier: MPL-2.0

package reload

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
)

type (
	// Reloader is told that deployments changed.
	Reloader interface {
		Reload(ctx context.Context) error
	}

	// Func adapts a function to Reloader.
	Func func(ctx context.Context) error

	// Log records the signal and does nothing else.
	Log struct {
		logger *log.Logger
		list   func() []string
	}
)

func (f Func) Reload(ctx context.Context) error { return f(ctx) }

// NewLog returns a Reloader that logs each signal together with the modules
// reported by list. list may be nil.
func NewLog(logger *log.Logger, list func() []string) *Log {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "reload"})
	}
	return &Log{logger: logger, list: list}
}

func (l *Log) Reload(context.Context) error {
	if l.list == nil {
		l.logger.Info("model reload signalled")
		return nil
	}
	modules := l.list()
	l.logger.Info("model reload signalled", "deployments", len(modules), "modules", modules)
	return nil
}
