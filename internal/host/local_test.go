// SPDX-License-Identifier: MPL-2.0

package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/modwatch/internal/logging"
	"github.com/invowk/modwatch/internal/testutil"
	"github.com/invowk/modwatch/pkg/modpkg"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "deployed"), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return l
}

func descriptor(t *testing.T, module, version string) *modpkg.Descriptor {
	t.Helper()
	path := testutil.WritePackage(t, filepath.Join(t.TempDir(), "pkg"+modpkg.Extension), module, version)
	desc, err := modpkg.Parse(path)
	require.NoError(t, err)
	return desc
}

func TestDeployUnpacksIntoOwnDirectory(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	desc := descriptor(t, "io.example.billing", "1.2.0")

	dep, err := l.Deploy(context.Background(), desc)
	require.NoError(t, err)

	d := dep.(*Deployment)
	assert.Equal(t, l.Dir(), filepath.Dir(d.Dir()))
	assert.True(t, strings.HasPrefix(filepath.Base(d.Dir()), "io.example.billing@1.2.0-"))
	assert.FileExists(t, filepath.Join(d.Dir(), modpkg.ManifestName))
	assert.FileExists(t, filepath.Join(d.Dir(), "bin", "run"))
	assert.Same(t, desc, d.Descriptor())

	infos := l.List()
	require.Len(t, infos, 1)
	assert.Equal(t, dep.ID(), infos[0].ID)
	assert.Equal(t, "1.2.0", infos[0].Version)
	assert.Equal(t, desc.Digest, infos[0].Digest)
}

func TestSameModuleTwiceGetsDistinctDirectories(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	desc := descriptor(t, "io.example.billing", "1.2.0")

	first, err := l.Deploy(context.Background(), desc)
	require.NoError(t, err)
	second, err := l.Deploy(context.Background(), desc)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID(), second.ID())
	assert.NotEqual(t, first.(*Deployment).Dir(), second.(*Deployment).Dir())
	assert.Len(t, l.List(), 2)

	require.NoError(t, first.Undeploy(context.Background()))
	assert.NoDirExists(t, first.(*Deployment).Dir())
	assert.DirExists(t, second.(*Deployment).Dir(), "undeploying the old copy must not touch the new one")
}

func TestUndeployTwice(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	dep, err := l.Deploy(context.Background(), descriptor(t, "io.example.a", "0.1.0"))
	require.NoError(t, err)

	require.NoError(t, dep.Undeploy(context.Background()))
	assert.Empty(t, l.List())
	require.ErrorIs(t, dep.Undeploy(context.Background()), ErrNotDeployed)
}

func TestDeployFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	desc := descriptor(t, "io.example.a", "0.1.0")
	require.NoError(t, os.Remove(desc.Source))

	_, err := l.Deploy(context.Background(), desc)
	require.Error(t, err)

	entries, err := os.ReadDir(l.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, l.List())
}

func TestDeployHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	l := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Deploy(ctx, descriptor(t, "io.example.a", "0.1.0"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewLocalRemovesStaleStaging(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, stagingPrefix+"leftover")
	kept := filepath.Join(dir, "io.example.a@0.1.0-deadbeef")
	testutil.MustMkdirAll(t, stale)
	testutil.MustMkdirAll(t, kept)

	_, err := NewLocal(dir, WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, kept)
}
