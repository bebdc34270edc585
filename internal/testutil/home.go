// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetConfigHome points the platform's home and user config directory at dir
// for the rest of the test and returns the directory os.UserConfigDir will
// report. Tests using it cannot run in parallel.
//
// Platform handling:
//   - Windows: USERPROFILE and AppData
//   - macOS: HOME (config lives under Library/Application Support)
//   - others: HOME and XDG_CONFIG_HOME
func SetConfigHome(t testing.TB, dir string) string {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("USERPROFILE", dir)
		appData := filepath.Join(dir, "AppData", "Roaming")
		t.Setenv("AppData", appData)
		return appData
	case "darwin":
		t.Setenv("HOME", dir)
		return filepath.Join(dir, "Library", "Application Support")
	default:
		t.Setenv("HOME", dir)
		xdg := filepath.Join(dir, ".config")
		t.Setenv("XDG_CONFIG_HOME", xdg)
		return xdg
	}
}
