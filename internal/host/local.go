// SPDX-License-Identifier: MPL-2.0

package host

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/invowk/modwatch/internal/deploy"
	"github.com/invowk/modwatch/pkg/modpkg"
)

const stagingPrefix = ".staging-"

// ErrNotDeployed is returned by Undeploy for a deployment already removed.
var ErrNotDeployed = errors.New("deployment is not live")

var _ deploy.Host = (*Local)(nil)

type (
	// Local unpacks packages into per-deployment directories under Dir.
	Local struct {
		dir    string
		logger *log.Logger
		now    func() time.Time

		mu   sync.Mutex
		live map[string]*Deployment
	}

	// Deployment is one unpacked package owned by a Local host.
	Deployment struct {
		host *Local
		id   string
		dir  string
		desc *modpkg.Descriptor
		at   time.Time
	}

	// Info describes a live deployment.
	Info struct {
		ID         string    `json:"id"`
		Module     string    `json:"module"`
		Version    string    `json:"version"`
		Dir        string    `json:"dir"`
		Source     string    `json:"source"`
		Digest     string    `json:"digest"`
		DeployedAt time.Time `json:"deployed_at"`
	}

	// Option configures a Local host.
	Option func(*Local)
)

// WithLogger sets the host logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

// NewLocal creates dir if needed and removes staging directories left by an
// interrupted run. Deployment directories from earlier runs are left alone.
func NewLocal(dir string, opts ...Option) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create deploy directory: %w", err)
	}

	l := &Local{dir: abs, now: time.Now, live: make(map[string]*Deployment)}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "host"})
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read deploy directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), stagingPrefix) {
			stale := filepath.Join(abs, e.Name())
			if rmErr := os.RemoveAll(stale); rmErr != nil {
				l.logger.Warn("failed to remove stale staging directory", "dir", stale, "error", rmErr)
			}
		}
	}
	return l, nil
}

// Dir returns the absolute deploy directory.
func (l *Local) Dir() string { return l.dir }

// Deploy unpacks desc into a fresh directory. The package is extracted into
// a staging directory first and renamed into place, so a failed deploy
// leaves nothing behind.
func (l *Local) Deploy(ctx context.Context, desc *modpkg.Descriptor) (deploy.Deployment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("descriptor must not be nil")
	}

	id := uuid.NewString()
	staging := filepath.Join(l.dir, stagingPrefix+id)
	target := filepath.Join(l.dir, fmt.Sprintf("%s@%s-%s", desc.Module, desc.Version, id[:8]))

	if err := modpkg.Extract(desc.Source, staging); err != nil {
		return nil, fmt.Errorf("extract %s: %w", desc, err)
	}

	if err := os.Rename(staging, target); err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("activate %s: %w", desc, err)
	}

	d := &Deployment{host: l, id: id, dir: target, desc: desc, at: l.now()}
	l.mu.Lock()
	l.live[id] = d
	l.mu.Unlock()

	l.logger.Debug("package unpacked", "module", desc.String(), "dir", target)
	return d, nil
}

// List returns the live deployments ordered by module, then deployment time.
func (l *Local) List() []Info {
	l.mu.Lock()
	out := make([]Info, 0, len(l.live))
	for _, d := range l.live {
		out = append(out, d.Info())
	}
	l.mu.Unlock()

	slices.SortFunc(out, func(a, b Info) int {
		if c := cmp.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		return a.DeployedAt.Compare(b.DeployedAt)
	})
	return out
}

// ID returns the deployment's unique identifier.
func (d *Deployment) ID() string { return d.id }

// Dir returns the directory holding the unpacked package.
func (d *Deployment) Dir() string { return d.dir }

// Descriptor returns the package the deployment was created from.
func (d *Deployment) Descriptor() *modpkg.Descriptor { return d.desc }

func (d *Deployment) Info() Info {
	return Info{
		ID:         d.id,
		Module:     d.desc.Module.String(),
		Version:    d.desc.Version.String(),
		Dir:        d.dir,
		Source:     d.desc.Source,
		Digest:     d.desc.Digest,
		DeployedAt: d.at,
	}
}

// Undeploy removes the deployment directory. Only the first call does any
// work; later calls return ErrNotDeployed.
func (d *Deployment) Undeploy(_ context.Context) error {
	l := d.host
	l.mu.Lock()
	_, live := l.live[d.id]
	delete(l.live, d.id)
	l.mu.Unlock()

	if !live {
		return fmt.Errorf("undeploy %s: %w", d.id, ErrNotDeployed)
	}

	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("remove %s: %w", d.dir, err)
	}
	l.logger.Debug("deployment removed", "module", d.desc.String(), "dir", d.dir)
	return nil
}
