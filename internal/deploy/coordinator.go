// SPDX-License-Identifier: MPL-2.0

package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/invowk/modwatch/internal/watch"
	"github.com/invowk/modwatch/pkg/modpkg"
)

var _ watch.Handler = (*Coordinator)(nil)

// Coordinator implements watch.Handler for module package files.
type Coordinator struct {
	parser    Parser
	host      Host
	reloader  Reloader
	trigger   Trigger
	extension string
	logger    *log.Logger

	active    registry
	teardowns conc.WaitGroup
	now       func() time.Time

	deploys          atomic.Uint64
	deployFailures   atomic.Uint64
	undeploys        atomic.Uint64
	teardownFailures atomic.Uint64
	reloadFailures   atomic.Uint64
}

// Metrics is a point-in-time copy of the coordinator counters.
type Metrics struct {
	Deploys          uint64
	DeployFailures   uint64
	Undeploys        uint64
	TeardownFailures uint64
	ReloadFailures   uint64
	Active           int
}

// New creates a Coordinator deploying through host.
func New(parser Parser, host Host, opts ...Option) (*Coordinator, error) {
	if parser == nil || host == nil {
		return nil, errors.New("deploy: parser and host are required")
	}

	c := &Coordinator{
		parser:    parser,
		host:      host,
		trigger:   TriggerCopy,
		extension: modpkg.Extension,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.trigger.Validate(); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	if !strings.HasPrefix(c.extension, ".") || len(c.extension) < 2 {
		return nil, fmt.Errorf("deploy: extension %q must start with a dot", c.extension)
	}
	if c.logger == nil {
		c.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "deploy"})
	}
	return c, nil
}

// Created deploys path when the trigger is TriggerMove.
func (c *Coordinator) Created(ctx context.Context, path string) error {
	if c.trigger != TriggerMove {
		return nil
	}
	return c.deploy(ctx, path)
}

// Modified deploys path when the trigger is TriggerCopy.
func (c *Coordinator) Modified(ctx context.Context, path string) error {
	if c.trigger != TriggerCopy {
		return nil
	}
	return c.deploy(ctx, path)
}

// Deleted undeploys whatever is active for path. The undeploy outcome is
// returned as is.
func (c *Coordinator) Deleted(ctx context.Context, path string) error {
	if !c.isPackage(path) {
		return nil
	}
	entry, ok := c.active.remove(path)
	if !ok {
		return nil
	}

	if err := entry.Deployment.Undeploy(ctx); err != nil {
		c.teardownFailures.Add(1)
		return fmt.Errorf("deploy: undeploy %s (%s): %w", entry.Module, path, err)
	}
	c.undeploys.Add(1)
	c.logger.Info("undeployed", "path", path, "module", entry.Module, "deployment", entry.Deployment.ID())
	c.reload(ctx)
	return nil
}

func (c *Coordinator) deploy(ctx context.Context, path string) error {
	if !c.isPackage(path) {
		return nil
	}

	desc, err := c.parser.Parse(ctx, path)
	if err != nil {
		c.deployFailures.Add(1)
		return fmt.Errorf("deploy: parse %s: %w", path, err)
	}

	dep, err := c.host.Deploy(ctx, desc)
	if err != nil {
		c.deployFailures.Add(1)
		return fmt.Errorf("deploy: %s from %s: %w", desc, path, err)
	}
	c.deploys.Add(1)

	prev, replaced := c.active.swap(&Entry{
		Path:       path,
		Deployment: dep,
		Module:     desc.String(),
		DeployedAt: c.now(),
	})
	c.logger.Info("deployed", "path", path, "module", desc.String(), "deployment", dep.ID(), "replaced", replaced)

	if replaced {
		c.retire(ctx, prev)
	}
	c.reload(ctx)
	return nil
}

// retire undeploys a superseded deployment without holding up the caller.
func (c *Coordinator) retire(ctx context.Context, prev *Entry) {
	ctx = context.WithoutCancel(ctx)
	c.teardowns.Go(func() {
		var err error
		if recovered := panics.Try(func() { err = prev.Deployment.Undeploy(ctx) }); recovered != nil {
			err = recovered.AsError()
		}
		if err != nil {
			c.teardownFailures.Add(1)
			c.logger.Error("undeploy of superseded deployment failed",
				"path", prev.Path, "module", prev.Module, "deployment", prev.Deployment.ID(), "error", err)
			return
		}
		c.undeploys.Add(1)
		c.logger.Debug("superseded deployment undeployed", "path", prev.Path, "deployment", prev.Deployment.ID())
	})
}

func (c *Coordinator) reload(ctx context.Context) {
	if c.reloader == nil {
		return
	}
	if err := c.reloader.Reload(ctx); err != nil {
		c.reloadFailures.Add(1)
		c.logger.Warn("model reload failed", "error", err)
	}
}

func (c *Coordinator) isPackage(path string) bool {
	return strings.HasSuffix(filepath.Base(path), c.extension)
}

// Trigger returns the configured trigger.
func (c *Coordinator) Trigger() Trigger { return c.trigger }

// Active lists the current deployments ordered by path.
func (c *Coordinator) Active() []Entry { return c.active.list() }

// Lookup returns the deployment that owns path.
func (c *Coordinator) Lookup(path string) (Entry, bool) {
	e, ok := c.active.get(path)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Wait blocks until background teardowns of superseded deployments finish.
func (c *Coordinator) Wait() {
	c.teardowns.Wait()
}

// Metrics returns the current counters.
func (c *Coordinator) Metrics() Metrics {
	return Metrics{
		Deploys:          c.deploys.Load(),
		DeployFailures:   c.deployFailures.Load(),
		Undeploys:        c.undeploys.Load(),
		TeardownFailures: c.teardownFailures.Load(),
		ReloadFailures:   c.reloadFailures.Load(),
		Active:           c.active.count(),
	}
}
