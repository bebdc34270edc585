// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invowk/modwatch/internal/logging"
	"github.com/invowk/modwatch/internal/testutil"
)

const waitTimeout = 5 * time.Second

// fakeBackend is an in-memory Backend whose events are injected by tests.
type fakeBackend struct {
	mu          sync.Mutex
	regs        map[string]*queue
	registerErr map[string]error
	closeErr    error
	closed      atomic.Bool
	opened      atomic.Bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		regs:        make(map[string]*queue),
		registerErr: make(map[string]error),
	}
}

func (f *fakeBackend) factory(string, BackendOptions) (Backend, error) {
	f.opened.Store(true)
	return f, nil
}

func (f *fakeBackend) Register(dir string) (Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.registerErr[dir]; err != nil {
		return nil, err
	}
	if q, ok := f.regs[dir]; ok {
		return q, nil
	}
	q := newQueue(dir, 0, func() error {
		f.mu.Lock()
		delete(f.regs, dir)
		f.mu.Unlock()
		return nil
	})
	f.regs[dir] = q
	return q, nil
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return f.closeErr
}

func (f *fakeBackend) emit(t *testing.T, dir string, kind Kind, name string) {
	t.Helper()
	f.mu.Lock()
	q := f.regs[dir]
	f.mu.Unlock()
	if q == nil {
		t.Fatalf("emit: %q is not registered", dir)
	}
	q.push(RawEvent{Dir: dir, Kind: kind, Name: name})
}

type call struct {
	kind Kind
	path string
}

// recorder is a Handler that records every call and can be told to block
// or fail per path.
type recorder struct {
	mu    sync.Mutex
	calls []call
	gate  map[string]chan struct{}
	fail  map[string]error
}

func newRecorder() *recorder {
	return &recorder{gate: make(map[string]chan struct{}), fail: make(map[string]error)}
}

func (r *recorder) record(kind Kind, path string) error {
	r.mu.Lock()
	r.calls = append(r.calls, call{kind: kind, path: path})
	gate := r.gate[path]
	err := r.fail[path]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (r *recorder) Created(_ context.Context, path string) error {
	return r.record(KindCreated, path)
}

func (r *recorder) Modified(_ context.Context, path string) error {
	return r.record(KindModified, path)
}

func (r *recorder) Deleted(_ context.Context, path string) error {
	return r.record(KindDeleted, path)
}

// block makes callbacks for path wait until the returned release func runs.
func (r *recorder) block(path string) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.gate[path] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) forPath(path string) []Kind {
	var kinds []Kind
	for _, c := range r.snapshot() {
		if c.path == path {
			kinds = append(kinds, c.kind)
		}
	}
	return kinds
}

func (r *recorder) has(kind Kind, path string) bool {
	return slices.Contains(r.snapshot(), call{kind: kind, path: path})
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startEngine creates and starts an engine over a fake backend.
func startEngine(t *testing.T, root string, h Handler, opts ...Option) (*Engine, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	opts = append([]Option{
		WithBackend(backend.factory),
		WithInterval(5 * time.Millisecond),
		WithLogger(logging.Discard()),
	}, opts...)

	e, err := New(root, h, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e, backend
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	testutil.MustWriteFile(t, path, []byte(content))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	testutil.MustMkdirAll(t, path)
}

var errBoom = errors.New("boom")
