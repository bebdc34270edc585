// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
)

// bootstrap registers root and every subdirectory, synthesizing created and
// modified callbacks for each entry found. A directory is registered before
// its children are listed, so an entry created mid-walk is either listed or
// reported by the native watch. Sibling callbacks run concurrently and are
// joined once the walk is done.
//
// Registration and listing failures fail the walk. Callback failures are
// per path and only logged.
func (e *Engine) bootstrap(ctx context.Context) error {
	var (
		walk      errgroup.Group
		callbacks conc.WaitGroup
	)

	var visit func(dir string) error
	visit = func(dir string) error {
		if err := e.register(dir); err != nil {
			return err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("watch: list %q: %w", dir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if e.ignored(path) {
				continue
			}
			callbacks.Go(func() { e.synthesize(ctx, path) })
			if entry.IsDir() {
				walk.Go(func() error { return visit(path) })
			}
		}
		return nil
	}

	walk.Go(func() error { return visit(e.root) })
	err := walk.Wait()

	if recovered := callbacks.WaitAndRecover(); recovered != nil {
		e.logger.Error("bootstrap callback panicked", "panic", recovered.Value)
	}
	return err
}

// synthesize reports a pre-existing entry as created, then modified.
func (e *Engine) synthesize(ctx context.Context, path string) {
	cbCtx := e.callbackCtx
	if cbCtx == nil {
		cbCtx = context.WithoutCancel(ctx)
	}
	if err := e.invoke(cbCtx, KindCreated, path, e.handler.Created); err != nil {
		e.logger.Error("bootstrap created callback failed", "path", path, "error", err)
	}
	if err := e.invoke(cbCtx, KindModified, path, e.handler.Modified); err != nil {
		e.logger.Error("bootstrap modified callback failed", "path", path, "error", err)
	}
}
