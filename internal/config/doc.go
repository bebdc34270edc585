// SPDX-License-Identifier: MPL-2.0

// Package config loads modwatch configuration with Viper, using CUE as the
// file format.
//
// Values come from, in increasing precedence: built-in defaults, config.cue
// (from the user config directory, the working directory, or an explicit
// path), and MODWATCH_* environment variables. The file is validated against
// the embedded #Config schema before it is merged, so a typo fails loudly
// instead of being ignored.
package config
