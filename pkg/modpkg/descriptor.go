// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/invowk/modwatch/pkg/cueutil"
)

var (
	// ErrInvalidPackage is wrapped by every Parse failure caused by the
	// package content rather than by I/O.
	ErrInvalidPackage = errors.New("invalid module package")

	// ErrMissingManifest means the archive has no module.cue at its root.
	ErrMissingManifest = errors.New("missing " + ManifestName)
)

type (
	// Descriptor is a validated module package, ready to deploy.
	Descriptor struct {
		// Source is the absolute path of the package file.
		Source      string
		Module      ModuleID
		Version     *semver.Version
		Description string
		Entrypoint  string
		Models      []string
		// Files lists regular file entries, slash-separated and sorted.
		Files []string
		Size  int64
		// Digest is "sha256:<hex>" over the package file.
		Digest string
	}

	// InvalidPackageError carries the package path and the validation cause.
	InvalidPackageError struct {
		Path string
		Err  error
	}

	// Parser adapts Parse to the deployment coordinator.
	Parser struct{}
)

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s@%s", d.Module, d.Version)
}

func (e *InvalidPackageError) Error() string {
	return fmt.Sprintf("invalid module package %s: %v", e.Path, e.Err)
}

func (e *InvalidPackageError) Unwrap() []error {
	return []error{ErrInvalidPackage, e.Err}
}

// Parse honors ctx only before reading; parsing a package is short.
func (Parser) Parse(ctx context.Context, path string) (*Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(path)
}

// Parse opens the package at path and validates its layout and manifest.
func Parse(path string) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve package path: %w", err)
	}

	size, digest, err := digestFile(abs)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(abs)
	if err != nil {
		return nil, &InvalidPackageError{Path: abs, Err: err}
	}
	defer func() { _ = zr.Close() }()

	var (
		files    []string
		manifest *zip.File
	)
	for _, f := range zr.File {
		if !safeEntryName(f.Name) {
			return nil, &InvalidPackageError{Path: abs, Err: fmt.Errorf("unsafe entry name %q", f.Name)}
		}
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f.Name)
		if f.Name == ManifestName {
			manifest = f
		}
	}
	if manifest == nil {
		return nil, &InvalidPackageError{Path: abs, Err: ErrMissingManifest}
	}

	data, err := readEntry(manifest, cueutil.DefaultMaxFileSize)
	if err != nil {
		return nil, &InvalidPackageError{Path: abs, Err: err}
	}
	m, version, err := ParseManifest(data, filepath.Base(abs)+"/"+ManifestName)
	if err != nil {
		return nil, &InvalidPackageError{Path: abs, Err: err}
	}

	slices.Sort(files)
	for _, ref := range append([]string{m.Entrypoint}, m.Models...) {
		if ref == "" {
			continue
		}
		if _, found := slices.BinarySearch(files, ref); !found {
			return nil, &InvalidPackageError{Path: abs, Err: fmt.Errorf("manifest references %q, which is not in the package", ref)}
		}
	}

	return &Descriptor{
		Source:      abs,
		Module:      ModuleID(m.Module),
		Version:     version,
		Description: m.Description,
		Entrypoint:  m.Entrypoint,
		Models:      m.Models,
		Files:       files,
		Size:        size,
		Digest:      digest,
	}, nil
}

// safeEntryName rejects absolute paths, parent traversal and backslashes.
func safeEntryName(name string) bool {
	if name == "" || strings.Contains(name, `\`) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(strings.TrimSuffix(name, "/")))
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if err := cueutil.CheckFileSize(data, limit, f.Name); err != nil {
		return nil, err
	}
	return data, nil
}

func digestFile(path string) (size int64, digest string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open package: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err = io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("hash package: %w", err)
	}
	return size, "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
