// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxEntrySize bounds a single uncompressed entry during extraction.
const MaxEntrySize int64 = 512 << 20

// ErrDestinationExists is returned by Extract when dest already exists.
var ErrDestinationExists = errors.New("destination already exists")

// Extract unpacks the package at pkgPath into dest, which must not exist.
// On failure dest is removed again.
func Extract(pkgPath, dest string) (err error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if _, statErr := os.Lstat(absDest); statErr == nil {
		return fmt.Errorf("extract to %s: %w", absDest, ErrDestinationExists)
	}

	zr, err := zip.OpenReader(pkgPath)
	if err != nil {
		return &InvalidPackageError{Path: pkgPath, Err: err}
	}
	defer func() { _ = zr.Close() }()

	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(absDest)
		}
	}()

	for _, f := range zr.File {
		if !safeEntryName(f.Name) {
			return &InvalidPackageError{Path: pkgPath, Err: fmt.Errorf("unsafe entry name %q", f.Name)}
		}
		target := filepath.Join(absDest, filepath.FromSlash(f.Name))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", f.Name, err)
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return err
	}
	if n > MaxEntrySize {
		return fmt.Errorf("entry exceeds %d bytes", MaxEntrySize)
	}
	return nil
}
