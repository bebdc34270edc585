// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const validManifest = `module: "io.example.billing"
version: "1.4.0"
description: "Billing endpoints"
entrypoint: "bin/billing"
models: ["models/invoice.cue"]
`

// writeZip builds a package from name -> content pairs.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func validEntries() map[string]string {
	return map[string]string{
		ManifestName:         validManifest,
		"bin/billing":        "#!/bin/sh\necho billing\n",
		"models/invoice.cue": "invoice: {}\n",
	}
}

func TestParseValidPackage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "billing"+Extension)
	writeZip(t, path, validEntries())

	d, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if d.Module != "io.example.billing" || d.Version.String() != "1.4.0" {
		t.Errorf("unexpected identity %s", d)
	}
	if d.String() != "io.example.billing@1.4.0" {
		t.Errorf("String() = %q", d.String())
	}
	if d.Entrypoint != "bin/billing" || !slices.Equal(d.Models, []string{"models/invoice.cue"}) {
		t.Errorf("unexpected manifest fields %+v", d)
	}
	if !slices.Equal(d.Files, []string{"bin/billing", ManifestName, "models/invoice.cue"}) {
		t.Errorf("Files = %v", d.Files)
	}
	if !strings.HasPrefix(d.Digest, "sha256:") || d.Size == 0 {
		t.Errorf("Digest/Size not populated: %q %d", d.Digest, d.Size)
	}
	if !filepath.IsAbs(d.Source) {
		t.Errorf("Source %q should be absolute", d.Source)
	}
}

func TestParseInvalidPackages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr error
	}{
		{
			name:    "missing manifest",
			mutate:  func(e map[string]string) { delete(e, ManifestName) },
			wantErr: ErrMissingManifest,
		},
		{
			name:   "bad module id",
			mutate: func(e map[string]string) { e[ManifestName] = strings.Replace(validManifest, "io.example.billing", "1bad", 1) },
		},
		{
			name:   "bad version",
			mutate: func(e map[string]string) { e[ManifestName] = strings.Replace(validManifest, "1.4.0", "one", 1) },
		},
		{
			name:   "unknown manifest field",
			mutate: func(e map[string]string) { e[ManifestName] = validManifest + "owner: \"me\"\n" },
		},
		{
			name:   "entrypoint not packaged",
			mutate: func(e map[string]string) { delete(e, "bin/billing") },
		},
		{
			name:   "model not packaged",
			mutate: func(e map[string]string) { delete(e, "models/invoice.cue") },
		},
		{
			name:   "path traversal",
			mutate: func(e map[string]string) { e["../escape"] = "x" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entries := validEntries()
			tt.mutate(entries)
			path := filepath.Join(t.TempDir(), "pkg"+Extension)
			writeZip(t, path, entries)

			_, err := Parse(path)
			if !errors.Is(err, ErrInvalidPackage) {
				t.Fatalf("Parse() error = %v, want ErrInvalidPackage", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseNotAZip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk"+Extension)
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(path); !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("Parse() error = %v, want ErrInvalidPackage", err)
	}
	if _, err := Parse(filepath.Join(t.TempDir(), "missing"+Extension)); err == nil || errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("a missing file is an I/O failure, got %v", err)
	}
}

func TestParserHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Parser{}).Parse(ctx, "whatever"+Extension); !errors.Is(err, context.Canceled) {
		t.Fatalf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestPackAndExtractRoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	for name, content := range validEntries() {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	outDir := t.TempDir()
	pkg, err := Pack(src, filepath.Join(outDir, "billing"+Extension))
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	d, err := Parse(pkg)
	if err != nil {
		t.Fatalf("Parse(packed) error = %v", err)
	}
	if d.Module != "io.example.billing" {
		t.Errorf("Module = %q", d.Module)
	}

	leftovers, _ := filepath.Glob(filepath.Join(outDir, ".pack-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}

	dest := filepath.Join(t.TempDir(), "deployed")
	if err := Extract(pkg, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "bin", "billing"))
	if err != nil || string(got) != validEntries()["bin/billing"] {
		t.Fatalf("extracted entrypoint = %q, %v", got, err)
	}

	if err := Extract(pkg, dest); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("second Extract() error = %v, want ErrDestinationExists", err)
	}
}

func TestPackDefaultName(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, ManifestName), []byte("module: \"io.example.tiny\"\nversion: \"0.1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())

	pkg, err := Pack(src, "")
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if filepath.Base(pkg) != "io.example.tiny-0.1.0"+Extension {
		t.Errorf("default name = %q", filepath.Base(pkg))
	}
}

func TestPackIntoDirectory(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, ManifestName), []byte("module: \"io.example.tiny\"\nversion: \"0.1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()

	pkg, err := Pack(src, out)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if want := filepath.Join(out, "io.example.tiny-0.1.0"+Extension); pkg != want {
		t.Errorf("Pack() = %q, want %q", pkg, want)
	}
}

func TestPackRequiresManifest(t *testing.T) {
	t.Parallel()

	if _, err := Pack(t.TempDir(), filepath.Join(t.TempDir(), "x"+Extension)); err == nil {
		t.Fatal("Pack() should fail without a manifest")
	}
}

func TestExtractCleansUpOnFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "evil"+Extension)
	writeZip(t, path, map[string]string{"ok.txt": "x", "../evil.txt": "x"})

	dest := filepath.Join(t.TempDir(), "deployed")
	if err := Extract(path, dest); !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("Extract() error = %v, want ErrInvalidPackage", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("destination should be removed after a failed extract, stat err = %v", err)
	}
}

func TestModuleIDValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id    ModuleID
		valid bool
	}{
		{"billing", true},
		{"io.example.billing", true},
		{"Io.Example2", true},
		{"", false},
		{"1billing", false},
		{"io..example", false},
		{"io.example-billing", false},
		{"io.example.", false},
		{ModuleID(strings.Repeat("a", 129)), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			t.Parallel()
			err := tt.id.Validate()
			if (err == nil) != tt.valid {
				t.Fatalf("Validate(%q) error = %v, valid %v", tt.id, err, tt.valid)
			}
			if err != nil {
				var idErr *InvalidModuleIDError
				if !errors.As(err, &idErr) || !errors.Is(err, ErrInvalidModuleID) {
					t.Errorf("unexpected error type %T", err)
				}
			}
		})
	}
}
