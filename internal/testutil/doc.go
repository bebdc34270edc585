// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by modwatch tests: building
// module packages on disk, isolating the user config directory, and
// failing fast on setup errors.
package testutil
