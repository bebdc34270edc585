// SPDX-License-Identifier: MPL-2.0

package reload

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Coalescer shares one in-flight reload between concurrent callers. A
// caller only joins a reload that started after its request, so every
// change is covered by a reload that observed it.
type Coalescer struct {
	next      Reloader
	group     singleflight.Group
	requested atomic.Uint64
	runs      atomic.Uint64
}

// Coalesce wraps next.
func Coalesce(next Reloader) *Coalescer {
	return &Coalescer{next: next}
}

// Reload returns the result of a reload that started after the call. ctx
// only bounds the wait; the shared reload runs to completion.
func (c *Coalescer) Reload(ctx context.Context) error {
	gen := c.requested.Add(1)
	for {
		ch := c.group.DoChan("reload", func() (any, error) {
			covered := c.requested.Load()
			c.runs.Add(1)
			return covered, c.next.Reload(context.WithoutCancel(ctx))
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if covered, _ := res.Val.(uint64); covered >= gen {
				return res.Err
			}
		}
	}
}

// Runs reports how many times the wrapped reloader actually ran.
func (c *Coalescer) Runs() uint64 { return c.runs.Load() }
