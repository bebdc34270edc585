// SPDX-License-Identifier: MPL-2.0

package modpkg

import (
	_ "embed"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/invowk/modwatch/pkg/cueutil"
)

const (
	// Extension is the default module package file extension.
	Extension = ".modpkg"
	// ManifestName is the manifest file at the archive root.
	ManifestName = "module.cue"
)

//go:embed manifest_schema.cue
var manifestSchema []byte

// Manifest is the decoded module.cue.
type Manifest struct {
	Module      string   `json:"module"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Entrypoint  string   `json:"entrypoint,omitempty"`
	Models      []string `json:"models,omitempty"`
}

// ParseManifest validates data against the manifest schema. name is used in
// error messages.
func ParseManifest(data []byte, name string) (*Manifest, *semver.Version, error) {
	res, err := cueutil.ParseAndDecode[Manifest](manifestSchema, data, "#Manifest", cueutil.WithFilename(name))
	if err != nil {
		return nil, nil, err
	}
	m := res.Value

	if err := ModuleID(m.Module).Validate(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	version, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: version %q: %w", name, m.Version, err)
	}
	return m, version, nil
}
