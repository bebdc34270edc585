// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/modwatch/internal/config"
	"github.com/invowk/modwatch/internal/issue"
)

// newConfigCommand creates the `modwatch config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modwatch configuration",
		Long: `Manage modwatch configuration.

Configuration is stored in:
  - Linux: ~/.config/modwatch/config.cue
  - macOS: ~/Library/Application Support/modwatch/config.cue
  - Windows: %APPDATA%\modwatch\config.cue

MODWATCH_<SECTION>_<KEY> environment variables override file values,
for example MODWATCH_WATCH_DISABLED=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var asCUE bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := app.Config.Resolve(cmd.Context(), config.LoadOptions{ConfigFilePath: app.flags.configPath})
			if err != nil {
				return err
			}
			if asCUE {
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			}
			renderConfig(app.stdout, cfg, path)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&asCUE, "cue", false, "print the effective configuration as CUE")
	cfgCmd.AddCommand(showCmd)

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.flags.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if err := config.WriteDefault(path, force); err != nil {
				return issue.NewErrorContext().
					WithOperation("create configuration file").
					WithResource(path).
					WithSuggestion("Use --force to overwrite an existing file").
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", dir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", path)
			if deployDir, err := config.DefaultDeployDir(); err == nil {
				fmt.Fprintf(app.stdout, "Deployment directory: %s\n", deployDir)
			}
			return nil
		},
	})

	return cfgCmd
}

func renderConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), path)
	}

	section := func(name string, kv ...string) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", KeyStyle.Render(name))
		for i := 0; i+1 < len(kv); i += 2 {
			value := kv[i+1]
			if value == "" {
				value = SubtitleStyle.Render("(unset)")
			} else {
				value = ValueStyle.Render(value)
			}
			fmt.Fprintf(w, "  %s: %s\n", kv[i], value)
		}
	}

	section("watch",
		"root", cfg.Watch.Root,
		"interval", fmt.Sprintf("%d%s", cfg.Watch.Interval, cfg.Watch.IntervalUnit),
		"allow_overlap", fmt.Sprint(cfg.Watch.AllowOverlap),
		"bootstrap", fmt.Sprint(cfg.Watch.Bootstrap),
		"disabled", fmt.Sprint(cfg.Watch.Disabled),
		"ignore", strings.Join(cfg.Watch.Ignore, ", "),
		"queue_limit", fmt.Sprint(cfg.Watch.QueueLimit),
		"callback_timeout_ms", fmt.Sprint(cfg.Watch.CallbackTimeoutMs),
	)
	section("deploy",
		"trigger", string(cfg.Deploy.Trigger),
		"extension", cfg.Deploy.Extension,
		"dir", cfg.Deploy.Dir,
	)
	section("reload",
		"hook", cfg.Reload.Hook,
		"timeout_ms", fmt.Sprint(cfg.Reload.TimeoutMs),
		"coalesce", fmt.Sprint(cfg.Reload.Coalesce),
	)
	section("log",
		"level", cfg.Log.Level,
		"timestamps", fmt.Sprint(cfg.Log.Timestamps),
		"json", fmt.Sprint(cfg.Log.JSON),
	)
	section("metrics",
		"addr", cfg.Metrics.Addr,
	)
}
