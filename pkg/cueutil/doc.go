// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against embedded schemas and
// decodes them into Go values.
//
// Both the module package manifest (module.cue) and the modwatch
// configuration file go through the same three steps: compile the schema,
// unify the user document with a schema definition, then validate and
// decode.
//
//	//go:embed manifest_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest",
//	    cueutil.WithFilename("module.cue"))
//
// Validation failures come back as *ValidationError with one Issue per
// offending field, addressed in JSON-path notation.
package cueutil
