// SPDX-License-Identifier: MPL-2.0

// Package lifecycle provides the start/stop state machine shared by the
// long-running components of modwatch: the directory watch engine and the
// admin HTTP server.
//
// A component embeds (or holds) a *Machine, drives transitions from its own
// Start and Stop methods, and tracks its background goroutines through the
// machine so Stop can wait for them.
package lifecycle
