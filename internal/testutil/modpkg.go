// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/invowk/modwatch/pkg/modpkg"
)

// ModuleDir writes a minimal module directory for module at version under
// parent and returns its path. The module has an entrypoint and one model.
func ModuleDir(t testing.TB, parent, module, version string) string {
	t.Helper()

	dir := filepath.Join(parent, module+"-"+version)
	manifest := fmt.Sprintf("module: %q\nversion: %q\nentrypoint: \"bin/run\"\nmodels: [\"models/model.cue\"]\n",
		module, version)
	MustWriteFile(t, filepath.Join(dir, modpkg.ManifestName), []byte(manifest))
	MustWriteFile(t, filepath.Join(dir, "bin", "run"), []byte("#!/bin/sh\necho "+module+"\n"))
	MustWriteFile(t, filepath.Join(dir, "models", "model.cue"), []byte("model: {version: \""+version+"\"}\n"))
	return dir
}

// WritePackage packs a minimal module into out. The package is built in a
// scratch directory and renamed into place, so a watcher sees it appear at
// once.
func WritePackage(t testing.TB, out, module, version string) string {
	t.Helper()

	scratch := t.TempDir()
	src := ModuleDir(t, scratch, module, version)
	staged, err := modpkg.Pack(src, filepath.Join(scratch, "staged"+modpkg.Extension))
	if err != nil {
		t.Fatalf("pack %s@%s: %v", module, version, err)
	}
	MustMkdirAll(t, filepath.Dir(out))
	if err := os.Rename(staged, out); err != nil {
		// Cross-device temp dirs: fall back to a copy.
		data, readErr := os.ReadFile(staged)
		if readErr != nil {
			t.Fatalf("read staged package: %v", readErr)
		}
		MustWriteFile(t, out, data)
	}
	abs, err := filepath.Abs(out)
	if err != nil {
		t.Fatalf("abs %s: %v", out, err)
	}
	return abs
}
