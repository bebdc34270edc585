// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ErrBackendClosed is returned by Register after Close.
var ErrBackendClosed = errors.New("watch: backend closed")

// FSNotifyBackend multiplexes one fsnotify.Watcher across many directory
// registrations. Events are routed to the registration of their parent
// directory; events for unregistered directories are dropped.
type FSNotifyBackend struct {
	fsw     *fsnotify.Watcher
	logger  *log.Logger
	limit   int
	onFatal func(error)

	mu     sync.Mutex
	regs   map[string]*queue
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewFSNotifyBackend opens an fsnotify watcher for the filesystem holding root.
func NewFSNotifyBackend(root string, opts BackendOptions) (*FSNotifyBackend, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch: stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: root %q is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}
	limit := opts.QueueLimit
	if limit <= 0 {
		limit = DefaultQueueLimit
	}

	b := &FSNotifyBackend{
		fsw:     fsw,
		logger:  logger,
		limit:   limit,
		onFatal: opts.OnFatal,
		regs:    make(map[string]*queue),
	}
	b.wg.Add(1)
	go b.pump()
	return b, nil
}

// FSNotify is the BackendFactory used by default.
func FSNotify(root string, opts BackendOptions) (Backend, error) {
	b, err := NewFSNotifyBackend(root, opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Register implements Backend. The registration is routable before the
// native watch is added, so nothing reported right after Add is dropped.
func (b *FSNotifyBackend) Register(dir string) (Registration, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBackendClosed
	}
	if reg, ok := b.regs[dir]; ok {
		b.mu.Unlock()
		return reg, nil
	}
	reg := newQueue(dir, b.limit, func() error { return b.release(dir) })
	b.regs[dir] = reg
	b.mu.Unlock()

	if err := b.fsw.Add(dir); err != nil {
		b.mu.Lock()
		if b.regs[dir] == reg {
			delete(b.regs, dir)
		}
		b.mu.Unlock()
		if fatalBackendError(err) && b.onFatal != nil {
			b.onFatal(err)
		}
		return nil, fmt.Errorf("watch: add directory %q: %w", dir, err)
	}
	return reg, nil
}

// Close implements Backend.
func (b *FSNotifyBackend) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.closeErr = b.fsw.Close()
		b.wg.Wait()
	})
	return b.closeErr
}

func (b *FSNotifyBackend) release(dir string) error {
	b.mu.Lock()
	delete(b.regs, dir)
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return nil
	}
	// inotify drops the watch itself once the directory is gone.
	if err := b.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("watch: remove directory %q: %w", dir, err)
	}
	return nil
}

func (b *FSNotifyBackend) pump() {
	defer b.wg.Done()
	for {
		select {
		case ev, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			b.route(ev)
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			b.fail(err)
		}
	}
}

// route queues ev on its directory's registration. Attribute-only changes
// never reach the engine.
func (b *FSNotifyBackend) route(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	dir := filepath.Dir(ev.Name)

	b.mu.Lock()
	reg := b.regs[dir]
	b.mu.Unlock()

	if reg == nil {
		b.logger.Debug("event outside watched directories", "path", ev.Name, "op", ev.Op.String())
		return
	}
	reg.push(RawEvent{Dir: dir, Kind: classify(ev.Op), Name: filepath.Base(ev.Name)})
}

func (b *FSNotifyBackend) fail(err error) {
	switch {
	case errors.Is(err, fsnotify.ErrEventOverflow):
		b.logger.Warn("native event queue overflowed, events were lost", "error", err)
		b.mu.Lock()
		regs := make([]*queue, 0, len(b.regs))
		for _, reg := range b.regs {
			regs = append(regs, reg)
		}
		b.mu.Unlock()
		for _, reg := range regs {
			reg.push(RawEvent{Dir: reg.dir, Kind: KindOverflow})
		}
	case fatalBackendError(err):
		b.logger.Error("native watcher can no longer deliver events", "error", err)
		if b.onFatal != nil {
			b.onFatal(err)
		}
	default:
		b.logger.Warn("native watcher error", "error", err)
	}
}

// classify maps an fsnotify op to a raw kind. A rename is reported on the
// old name, which no longer exists, so it counts as a deletion.
func classify(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreated
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindDeleted
	case op.Has(fsnotify.Write):
		return KindModified
	default:
		return KindOther
	}
}
