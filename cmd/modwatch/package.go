// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/modwatch/internal/issue"
	"github.com/invowk/modwatch/pkg/modpkg"
)

type packageView struct {
	Source      string   `json:"source"`
	Module      string   `json:"module"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Entrypoint  string   `json:"entrypoint,omitempty"`
	Models      []string `json:"models"`
	Files       []string `json:"files"`
	Size        int64    `json:"size"`
	Digest      string   `json:"digest"`
}

func newPackCommand(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pack <module-dir>",
		Short: "Build a module package from a module directory",
		Long: `Build a module package from a module directory.

The directory must contain a valid module.cue manifest. The package is
written as <module>-<version>` + modpkg.Extension + ` into the current
directory, or into --output when it names a directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := modpkg.Pack(args[0], out)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("pack module").
					WithResource(args[0]).
					WithSuggestion("Check that module.cue declares module and version").
					WithIssue(issue.InvalidPackageId).
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s Packed %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file or directory")
	return cmd
}

func newInspectCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <package>",
		Short: "Validate a module package and show its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := modpkg.Parse(args[0])
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("inspect package").
					WithResource(args[0]).
					WithIssue(issue.InvalidPackageId).
					Wrap(err).
					BuildError()
			}

			view := newPackageView(desc)
			if asJSON {
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			renderPackage(app.stdout, view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the descriptor as JSON")
	return cmd
}

func newPackageView(desc *modpkg.Descriptor) packageView {
	models := desc.Models
	if models == nil {
		models = []string{}
	}
	return packageView{
		Source:      desc.Source,
		Module:      desc.Module.String(),
		Version:     desc.Version.String(),
		Description: desc.Description,
		Entrypoint:  desc.Entrypoint,
		Models:      models,
		Files:       desc.Files,
		Size:        desc.Size,
		Digest:      desc.Digest,
	}
}

func renderPackage(w io.Writer, v packageView) {
	fmt.Fprintln(w, TitleStyle.Render(v.Module+"@"+v.Version))
	if v.Description != "" {
		fmt.Fprintln(w, SubtitleStyle.Render(v.Description))
	}
	fmt.Fprintln(w)

	field := func(key, value string) {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render(key), ValueStyle.Render(value))
	}
	field("Source", v.Source)
	field("Size", fmt.Sprintf("%d bytes", v.Size))
	field("Digest", v.Digest)
	if v.Entrypoint != "" {
		field("Entrypoint", v.Entrypoint)
	}
	if len(v.Models) > 0 {
		field("Models", strings.Join(v.Models, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("Files"))
	for _, f := range v.Files {
		fmt.Fprintf(w, "  %s\n", VerboseStyle.Render(f))
	}
}
