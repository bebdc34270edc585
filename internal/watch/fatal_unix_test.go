// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestFatalBackendError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "watch limit reached", err: syscall.ENOSPC, want: true},
		{name: "process descriptors exhausted", err: syscall.EMFILE, want: true},
		{name: "system descriptors exhausted", err: syscall.ENFILE, want: true},
		{name: "wrapped watch limit", err: fmt.Errorf("register %q: %w", "/srv/modules", syscall.ENOSPC), want: true},
		{name: "permission denied", err: syscall.EACCES, want: false},
		{name: "queue overflow", err: fsnotify.ErrEventOverflow, want: false},
		{name: "plain error", err: fmt.Errorf("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := fatalBackendError(tt.err); got != tt.want {
				t.Errorf("fatalBackendError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
