// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/modwatch/internal/admin"
	"github.com/invowk/modwatch/internal/config"
	"github.com/invowk/modwatch/internal/issue"
	"github.com/invowk/modwatch/internal/testutil"
	"github.com/invowk/modwatch/pkg/modpkg"
)

func TestConfigCommands(t *testing.T) {
	// Not parallel: changes HOME and the working directory.
	cfgDir := testutil.SetConfigHome(t, t.TempDir())
	t.Chdir(t.TempDir())
	want := filepath.Join(cfgDir, config.AppName, "config.cue")

	out, err := runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, want)

	out, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "(using defaults)")

	out, err = runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, want)
	assert.FileExists(t, want)

	_, err = runCLI(t, "config", "init")
	require.ErrorIs(t, err, os.ErrExist)

	_, err = runCLI(t, "config", "init", "--force")
	require.NoError(t, err)

	out, err = runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, want)

	out, err = runCLI(t, "config", "show", "--cue")
	require.NoError(t, err)
	assert.Contains(t, out, "watch: {")
	assert.Contains(t, out, `trigger:`)
}

func TestConfigInitExplicitPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "modwatch.cue")
	_, err := runCLI(t, "--config", path, "config", "init")
	require.NoError(t, err)

	out, err := runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestPackAndInspect(t *testing.T) {
	t.Parallel()

	src := testutil.ModuleDir(t, t.TempDir(), "io.example.billing", "1.4.0")
	outDir := t.TempDir()

	out, err := runCLI(t, "pack", src, "-o", outDir)
	require.NoError(t, err)
	pkg := filepath.Join(outDir, "io.example.billing-1.4.0"+modpkg.Extension)
	assert.Contains(t, out, pkg)
	require.FileExists(t, pkg)

	out, err = runCLI(t, "inspect", pkg, "--json")
	require.NoError(t, err)
	var view packageView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "io.example.billing", view.Module)
	assert.Equal(t, "1.4.0", view.Version)
	assert.Equal(t, "bin/run", view.Entrypoint)
	assert.Equal(t, []string{"models/model.cue"}, view.Models)
	assert.Contains(t, view.Files, modpkg.ManifestName)

	out, err = runCLI(t, "inspect", pkg)
	require.NoError(t, err)
	assert.Contains(t, out, "io.example.billing@1.4.0")
	assert.Contains(t, out, "models/model.cue")
}

func TestInspectInvalidPackage(t *testing.T) {
	t.Parallel()

	bogus := filepath.Join(t.TempDir(), "bogus"+modpkg.Extension)
	testutil.MustWriteFile(t, bogus, []byte("not a zip"))

	_, err := runCLI(t, "inspect", bogus)
	require.Error(t, err)
	assert.Equal(t, issue.Get(issue.InvalidPackageId), issue.IssueOf(err))
}

func TestPackWithoutManifest(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "pack", t.TempDir(), "-o", t.TempDir())
	require.Error(t, err)

	var ae *issue.ActionableError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "pack module", ae.Operation)
}

func TestRenderDeployments(t *testing.T) {
	t.Parallel()

	var empty bytes.Buffer
	renderDeployments(&empty, nil)
	assert.Contains(t, empty.String(), "No active deployments")

	var buf bytes.Buffer
	renderDeployments(&buf, []admin.DeploymentView{{
		Path:       "/srv/drop/billing.modpkg",
		Module:     "io.example.billing@1.0.0",
		Deployment: "0b7c2a4e",
		DeployedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, buf.String(), "MODULE")
	assert.Contains(t, buf.String(), "io.example.billing@1.0.0")
	assert.Contains(t, buf.String(), "0b7c2a4e")
}

func TestDeploymentsRequiresAddress(t *testing.T) {
	// Not parallel: changes HOME and the working directory.
	testutil.SetConfigHome(t, t.TempDir())
	t.Chdir(t.TempDir())

	_, err := runCLI(t, "deployments")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin address configured")
}
