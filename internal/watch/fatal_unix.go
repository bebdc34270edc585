// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// fatalBackendError reports whether err means the native watcher can no
// longer deliver events. On inotify platforms that is resource exhaustion:
// ENOSPC when fs.inotify.max_user_watches is reached, EMFILE/ENFILE when
// descriptors run out.
func fatalBackendError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
