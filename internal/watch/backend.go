// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"github.com/charmbracelet/log"
)

// DefaultQueueLimit bounds the events buffered per registration before
// further events collapse into a single KindOverflow.
const DefaultQueueLimit = 4096

type (
	// Backend is a native notification primitive that watches single
	// directories. One Backend serves one Engine.
	Backend interface {
		// Register starts watching dir. Registering a directory twice returns
		// the existing registration.
		Register(dir string) (Registration, error)
		// Close releases the primitive. Registrations become inert.
		Close() error
	}

	// Registration is the watch handle for exactly one directory.
	//
	// A registration starts armed. Drain hands out everything queued and
	// disarms it; while disarmed events keep queueing but Drain returns
	// nothing until Rearm is called. Cancel stops the watch and hands back
	// whatever was still queued, armed or not; later calls return nothing.
	Registration interface {
		Dir() string
		Drain() []RawEvent
		Rearm()
		Cancel() ([]RawEvent, error)
	}

	// BackendOptions are passed to a BackendFactory by the Engine.
	BackendOptions struct {
		Logger     *log.Logger
		QueueLimit int
		// OnFatal is called when the primitive reports an unrecoverable error.
		OnFatal func(error)
	}

	// BackendFactory opens a Backend for the filesystem holding root.
	BackendFactory func(root string, opts BackendOptions) (Backend, error)
)

// IsResourceExhausted reports whether err means the platform ran out of
// native watch resources, such as the inotify watch or descriptor limits.
func IsResourceExhausted(err error) bool { return fatalBackendError(err) }
