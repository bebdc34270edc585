// SPDX-License-Identifier: MPL-2.0

package reload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/modwatch/internal/logging"
)

func TestFunc(t *testing.T) {
	t.Parallel()

	var called bool
	r := Func(func(context.Context) error { called = true; return nil })
	require.NoError(t, r.Reload(context.Background()))
	assert.True(t, called)
}

func TestLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(log.New(&buf), func() []string { return []string{"io.example.a@1.0.0"} })
	require.NoError(t, l.Reload(context.Background()))
	assert.Contains(t, buf.String(), "model reload signalled")
	assert.Contains(t, buf.String(), "io.example.a@1.0.0")
}

func TestHookEnvironment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	h, err := NewHook(`printf '%s' "$MODWATCH_DEPLOYMENTS" > deployments.txt`,
		WithDir(dir),
		WithEnv([]string{"PATH=" + os.Getenv("PATH")}),
		WithDeployments(func() []string { return []string{"io.example.a@1.0.0", "io.example.b@2.0.0"} }),
		WithHookLogger(logging.Discard()),
	)
	require.NoError(t, err)
	require.NoError(t, h.Reload(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "deployments.txt"))
	require.NoError(t, err)
	assert.Equal(t, "io.example.a@1.0.0,io.example.b@2.0.0", string(data))
}

func TestHookFailure(t *testing.T) {
	t.Parallel()

	h, err := NewHook("echo reloading models; exit 3", WithDir(t.TempDir()), WithHookLogger(logging.Discard()))
	require.NoError(t, err)

	err = h.Reload(context.Background())
	require.ErrorIs(t, err, ErrHookFailed)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, 3, hookErr.ExitCode)
	assert.Equal(t, "reloading models", hookErr.Output)
}

func TestNewHookRejectsBadScripts(t *testing.T) {
	t.Parallel()

	_, err := NewHook("   ")
	require.Error(t, err)

	_, err = NewHook("if then fi (")
	require.Error(t, err)
}

func TestLimitedWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: 4}
	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = w.Write([]byte("gh"))
	assert.Equal(t, "abcd", buf.String())
}

// gatedReloader blocks its first run until release is closed. Later runs
// take delay.
type gatedReloader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
	delay   time.Duration
	err     error
}

func newGated() *gatedReloader {
	return &gatedReloader{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReloader) Reload(context.Context) error {
	if g.calls.Add(1) == 1 {
		g.once.Do(func() { close(g.started) })
		<-g.release
		return g.err
	}
	time.Sleep(g.delay)
	return g.err
}

func TestCoalesceRerunsForLateCallers(t *testing.T) {
	t.Parallel()

	g := newGated()
	c := Coalesce(g)

	first := make(chan error, 1)
	go func() { first <- c.Reload(context.Background()) }()
	<-g.started

	second := make(chan error, 1)
	go func() { second <- c.Reload(context.Background()) }()
	require.Eventually(t, func() bool { return c.requested.Load() == 2 }, time.Second, time.Millisecond)

	close(g.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, uint64(2), c.Runs(), "a reload already running cannot cover a later change")
}

func TestCoalesceSharesRuns(t *testing.T) {
	t.Parallel()

	g := newGated()
	g.delay = 50 * time.Millisecond
	c := Coalesce(g)

	go func() { _ = c.Reload(context.Background()) }()
	<-g.started

	const waiters = 8
	var wg sync.WaitGroup
	for range waiters {
		wg.Go(func() { assert.NoError(t, c.Reload(context.Background())) })
	}
	require.Eventually(t, func() bool { return c.requested.Load() == waiters+1 }, time.Second, time.Millisecond)

	close(g.release)
	wg.Wait()
	assert.Less(t, c.Runs(), uint64(waiters+1))
}

func TestCoalescePropagatesErrorsAndContext(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := Coalesce(Func(func(context.Context) error { return boom }))
	require.ErrorIs(t, c.Reload(context.Background()), boom)

	g := newGated()
	slow := Coalesce(g)
	go func() { _ = slow.Reload(context.Background()) }()
	<-g.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, slow.Reload(ctx), context.Canceled)
	close(g.release)
}
