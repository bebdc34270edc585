// SPDX-License-Identifier: MPL-2.0

// Package modpkg implements the module package format deployed by modwatch.
//
// A module package is a zip archive whose file name ends in ".modpkg". The
// archive root holds a module.cue manifest:
//
//	module:      "io.example.billing"
//	version:     "1.4.0"
//	description: "Billing endpoints"
//	entrypoint:  "bin/billing"
//	models: ["models/invoice.cue"]
//
// Parse validates a package and returns its Descriptor, Pack builds a
// package from a directory, and Extract unpacks one into a deployment
// directory.
package modpkg
