// SPDX-License-Identifier: MPL-2.0

package reload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// DeploymentsEnv lists the live deployments, comma separated, in the hook's
// environment.
const DeploymentsEnv = "MODWATCH_DEPLOYMENTS"

// maxHookOutput bounds the hook output kept for logs and errors.
const maxHookOutput = 8 << 10

// ErrHookFailed is wrapped by HookError.
var ErrHookFailed = errors.New("reload hook failed")

type (
	// Hook runs a shell script through the embedded interpreter on every
	// reload. The script is parsed once, up front.
	Hook struct {
		prog    *syntax.File
		dir     string
		env     []string
		timeout time.Duration
		list    func() []string
		logger  *log.Logger
	}

	// HookOption configures a Hook.
	HookOption func(*Hook)

	// HookError reports a non-zero exit or an interpreter failure.
	HookError struct {
		ExitCode int
		Output   string
		Err      error
	}
)

// WithDir sets the hook working directory. Defaults to the process directory.
func WithDir(dir string) HookOption { return func(h *Hook) { h.dir = dir } }

// WithEnv replaces the inherited environment (KEY=VALUE pairs).
func WithEnv(env []string) HookOption { return func(h *Hook) { h.env = env } }

// WithTimeout bounds a single run. Zero means no bound.
func WithTimeout(d time.Duration) HookOption { return func(h *Hook) { h.timeout = d } }

// WithDeployments sets the source of DeploymentsEnv.
func WithDeployments(list func() []string) HookOption { return func(h *Hook) { h.list = list } }

// WithHookLogger sets the hook logger.
func WithHookLogger(logger *log.Logger) HookOption { return func(h *Hook) { h.logger = logger } }

// NewHook parses script. A syntax error is returned immediately rather than
// on the first reload.
func NewHook(script string, opts ...HookOption) (*Hook, error) {
	if strings.TrimSpace(script) == "" {
		return nil, errors.New("reload hook script is empty")
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "reload-hook")
	if err != nil {
		return nil, fmt.Errorf("failed to parse reload hook: %w", err)
	}

	h := &Hook{prog: prog, env: os.Environ()}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "reload"})
	}
	return h, nil
}

func (h *Hook) Reload(ctx context.Context) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var deployments []string
	if h.list != nil {
		deployments = h.list()
	}
	env := append(append([]string(nil), h.env...), DeploymentsEnv+"="+strings.Join(deployments, ","))

	var out bytes.Buffer
	w := &limitedWriter{buf: &out, limit: maxHookOutput}
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, w, w),
	}
	if h.dir != "" {
		opts = append(opts, interp.Dir(h.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	start := time.Now()
	err = runner.Run(ctx, h.prog)
	w.mu.Lock()
	output := strings.TrimSpace(out.String())
	w.mu.Unlock()
	if err != nil {
		hookErr := &HookError{ExitCode: 1, Output: output, Err: err}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			hookErr.ExitCode = int(status)
		}
		return hookErr
	}

	h.logger.Debug("reload hook finished", "deployments", len(deployments), "elapsed", time.Since(start), "output", output)
	return nil
}

func (e *HookError) Error() string {
	msg := fmt.Sprintf("reload hook exited with status %d", e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *HookError) Unwrap() []error { return []error{ErrHookFailed, e.Err} }

// limitedWriter keeps the first limit bytes and discards the rest. External
// commands copy stdout and stderr from separate goroutines.
type limitedWriter struct {
	mu    sync.Mutex
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if room := w.limit - w.buf.Len(); room > 0 {
		w.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}
