// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet/log loggers used across modwatch.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures the root logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Timestamps adds a timestamp to every line.
	Timestamps bool
	// JSON switches to the JSON formatter.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates the root logger.
func New(opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	formatter := log.TextFormatter
	if opts.JSON {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.RFC3339,
		ReportCaller:    level == log.DebugLevel,
		Formatter:       formatter,
	}), nil
}

// Component derives a prefixed logger for one subsystem.
func Component(root *log.Logger, name string) *log.Logger {
	if root == nil {
		return Default(name)
	}
	return root.WithPrefix(name)
}

// Default is the logger a component falls back to when none is injected.
func Default(name string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Prefix: name})
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
