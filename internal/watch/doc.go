// SPDX-License-Identifier: MPL-2.0

// Package watch turns a directory tree into a stream of created, modified and
// deleted callbacks on top of a native notification primitive that only
// watches one directory level at a time.
//
// The Engine keeps one Registration per watched directory, keyed by absolute
// path. Registrations are added for the root, for every pre-existing
// subdirectory when bootstrapping, and for every directory that shows up in a
// created event; they are cancelled when the directory is deleted.
//
// Events are not pushed to the Handler as they arrive. A ticker drives poll
// cycles; each cycle snapshots the registrations, drains every directory
// concurrently, dispatches that directory's events in drain order, and
// re-arms the same registration once every callback for the batch returned.
//
// A Handler that blocks keeps its directory disarmed. With overlap disabled
// the whole engine then skips ticks until the callback returns; there is no
// built-in deadline unless WithCallbackTimeout is set explicitly.
//
// Copying a file into the tree yields created then modified, while moving it
// in yields created only. The engine reports both faithfully; consumers pick
// which one they act on.
package watch
