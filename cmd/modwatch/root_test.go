// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/fang"
	"github.com/stretchr/testify/assert"

	"github.com/invowk/modwatch/internal/issue"
)

// runCLI executes the command tree with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{Stdout: &stdout, Stderr: &stderr})
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	err := rootCmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		assert.Equal(t, "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)", getVersionString())
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		assert.Equal(t, "dev (built from source)", getVersionString())
	})
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	rootCmd := NewRootCommand(NewApp(Dependencies{}))
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "pack", "inspect", "deployments", "config"}, names)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("boom")
	assert.Equal(t, "boom", formatErrorForDisplay(plain, false))

	actionable := issue.NewErrorContext().
		WithOperation("start watching").
		WithResource("/srv/drop").
		WithSuggestion("Create the directory").
		Wrap(plain).
		BuildError()
	out := formatErrorForDisplay(actionable, false)
	assert.Contains(t, out, "start watching")
	assert.Contains(t, out, "/srv/drop")
	assert.Contains(t, out, "Create the directory")
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("silent exit error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		errorHandler(NewApp(Dependencies{}))(&buf, fang.Styles{}, &ExitError{Code: 3})
		assert.Empty(t, buf.String())
	})

	t.Run("actionable error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		err := issue.NewErrorContext().
			WithOperation("inspect package").
			Wrap(errors.New("not a zip")).
			BuildError()
		errorHandler(NewApp(Dependencies{}))(&buf, fang.Styles{}, err)
		assert.True(t, strings.Contains(buf.String(), "inspect package"), buf.String())
	})
}

func TestExitError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())

	cause := errors.New("watch engine failed")
	err := &ExitError{Code: ExitCodeWatchFailed, Err: cause}
	assert.Equal(t, "watch engine failed", err.Error())
	assert.ErrorIs(t, err, cause)
}
