// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

// registry maps package paths to their active Entry. Updates are per key
// and never block unrelated paths.
type registry struct {
	entries sync.Map // string -> *Entry
	size    atomic.Int64
}

// swap installs e for its path and returns the entry it replaced.
func (r *registry) swap(e *Entry) (*Entry, bool) {
	prev, loaded := r.entries.Swap(e.Path, e)
	if !loaded {
		r.size.Add(1)
		return nil, false
	}
	return prev.(*Entry), true
}

// remove deletes and returns the entry for path.
func (r *registry) remove(path string) (*Entry, bool) {
	prev, loaded := r.entries.LoadAndDelete(path)
	if !loaded {
		return nil, false
	}
	r.size.Add(-1)
	return prev.(*Entry), true
}

func (r *registry) get(path string) (*Entry, bool) {
	v, ok := r.entries.Load(path)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

func (r *registry) count() int {
	return int(r.size.Load())
}

// list returns a copy of every entry ordered by path.
func (r *registry) list() []Entry {
	var out []Entry
	r.entries.Range(func(_, v any) bool {
		out = append(out, *v.(*Entry))
		return true
	})
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Path, b.Path) })
	return out
}
