// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modwatch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/invowk/modwatch/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree for app. The persistent flags are
// stored on app once cobra parsed them.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "modwatch",
		Short: "Hot-deploy module packages dropped into a directory tree",
		Long: TitleStyle.Render("modwatch") + SubtitleStyle.Render(" - Hot-deploy module packages dropped into a directory tree") + `

modwatch watches a directory tree and deploys every module package
(` + "`*.modpkg`" + `) copied or moved into it. Replacing a package redeploys it,
deleting it undeploys it, and the model reload hook runs after each change.

` + SubtitleStyle.Render("Examples:") + `
  modwatch serve ./drop                  Watch ./drop and deploy packages
  modwatch pack ./my-module -o out/      Build a package from a module directory
  modwatch inspect io.example.mod.modpkg Show a package manifest
  modwatch config init                   Create a default config file`,
		SilenceUsage: true,
	}

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/modwatch/config.cue)")

	rootCmd.AddCommand(
		newServeCommand(app),
		newPackCommand(app),
		newInspectCommand(app),
		newDeploymentsCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithCommit(Commit),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(errorHandler(app)),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// errorHandler prints actionable errors in their own format and, with
// --verbose, the troubleshooting issue linked to the error.
func errorHandler(app *App) fang.ErrorHandler {
	return func(w io.Writer, styles fang.Styles, err error) {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return
		}

		fmt.Fprintln(w, styles.ErrorHeader.Render("ERROR"))
		fmt.Fprintln(w, styles.ErrorText.Render(formatErrorForDisplay(err, app.flags.verbose)))
		fmt.Fprintln(w)

		if !app.flags.verbose {
			return
		}
		if is := issue.IssueOf(err); is != nil {
			rendered, renderErr := is.Render("dark")
			if renderErr == nil {
				fmt.Fprint(w, rendered)
			}
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
