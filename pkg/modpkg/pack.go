// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Pack archives the module directory dir into a package. dir must contain a
// valid module.cue. When out is empty the package is written to the current
// directory as "<module>-<version>.modpkg"; when out is an existing
// directory the package gets that name inside it. It returns the absolute path of
// the package written.
//
// Symlinks and other non-regular files are skipped.
func Pack(dir, out string) (pkgPath string, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve module directory: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(absDir, ManifestName))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	m, version, err := ParseManifest(data, filepath.Join(absDir, ManifestName))
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s%s", m.Module, version, Extension)
	if out == "" {
		out = name
	} else if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
		out = filepath.Join(out, name)
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}

	// Write next to the destination, then rename, so a watcher never sees a
	// half-written package under the final name.
	tmp, err := os.CreateTemp(filepath.Dir(absOut), ".pack-*")
	if err != nil {
		return "", fmt.Errorf("create package: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	walkErr := filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == absOut || path == tmp.Name() || !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(absDir, path)
		if relErr != nil {
			return relErr
		}
		return addFile(zw, path, filepath.ToSlash(rel), d)
	})
	if walkErr != nil {
		_ = zw.Close()
		_ = tmp.Close()
		return "", fmt.Errorf("archive module: %w", walkErr)
	}
	if err = zw.Close(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("finish package: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("finish package: %w", err)
	}
	if err = os.Rename(tmp.Name(), absOut); err != nil {
		return "", fmt.Errorf("move package into place: %w", err)
	}
	return absOut, nil
}

func addFile(zw *zip.Writer, path, name string, d os.DirEntry) (err error) {
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
