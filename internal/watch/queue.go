// SPDX-License-Identifier: MPL-2.0

package watch

import "sync"

// queue is the Registration shared by every backend: a bounded, armable
// buffer of raw events for one directory.
type queue struct {
	dir    string
	limit  int
	cancel func() error

	mu         sync.Mutex
	pending    []RawEvent
	armed      bool
	overflowed bool
	canceled   bool
}

func newQueue(dir string, limit int, cancel func() error) *queue {
	return &queue{dir: dir, limit: limit, cancel: cancel, armed: true}
}

func (q *queue) Dir() string { return q.dir }

// push appends ev. A directory removal is reported once by inotify for the
// directory itself and once by its parent; adjacent duplicates collapse.
func (q *queue) push(ev RawEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.canceled {
		return
	}
	if ev.Kind == KindOverflow || (q.limit > 0 && len(q.pending) >= q.limit) {
		if !q.overflowed {
			q.pending = append(q.pending, RawEvent{Dir: q.dir, Kind: KindOverflow})
			q.overflowed = true
		}
		return
	}
	if n := len(q.pending); n > 0 {
		last := q.pending[n-1]
		if last.Kind == KindDeleted && ev.Kind == KindDeleted && last.Name == ev.Name {
			return
		}
	}
	q.pending = append(q.pending, ev)
}

func (q *queue) Drain() []RawEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.armed || len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	q.overflowed = false
	q.armed = false
	return out
}

func (q *queue) Rearm() {
	q.mu.Lock()
	q.armed = true
	q.mu.Unlock()
}

func (q *queue) Cancel() ([]RawEvent, error) {
	q.mu.Lock()
	if q.canceled {
		q.mu.Unlock()
		return nil, nil
	}
	q.canceled = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	if q.cancel == nil {
		return pending, nil
	}
	return pending, q.cancel()
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
