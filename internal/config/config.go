// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/invowk/modwatch/internal/issue"
	"github.com/invowk/modwatch/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "modwatch"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. MODWATCH_WATCH_ROOT.
	EnvPrefix = "MODWATCH"
)

// ErrConfigNotFound is returned when an explicit config path does not exist.
var ErrConfigNotFound = errors.New("config file not found")

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the modwatch configuration directory under the
// platform's user config directory.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultDeployDir is used when deploy.dir is empty.
func DefaultDeployDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, AppName, "deployments"), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := newViper()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the schema shown by 'modwatch config init'").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("decode configuration").
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for malformed values").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

// newViper returns a Viper with every default registered, so that
// AutomaticEnv sees every key.
func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("watch.root", d.Watch.Root)
	v.SetDefault("watch.interval", d.Watch.Interval)
	v.SetDefault("watch.interval_unit", string(d.Watch.IntervalUnit))
	v.SetDefault("watch.allow_overlap", d.Watch.AllowOverlap)
	v.SetDefault("watch.bootstrap", d.Watch.Bootstrap)
	v.SetDefault("watch.disabled", d.Watch.Disabled)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("watch.queue_limit", d.Watch.QueueLimit)
	v.SetDefault("watch.callback_timeout_ms", d.Watch.CallbackTimeoutMs)
	v.SetDefault("deploy.trigger", string(d.Deploy.Trigger))
	v.SetDefault("deploy.extension", d.Deploy.Extension)
	v.SetDefault("deploy.dir", d.Deploy.Dir)
	v.SetDefault("reload.hook", d.Reload.Hook)
	v.SetDefault("reload.timeout_ms", d.Reload.TimeoutMs)
	v.SetDefault("reload.coalesce", d.Reload.Coalesce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.timestamps", d.Log.Timestamps)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// resolveConfigFile picks the file to load: the explicit path, which must
// exist, else config.cue in the config directory, else in the working
// directory. No file at all is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'modwatch config init' to write a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
// Fields are optional, so validation is not concrete and the decoded map
// only holds what the file sets.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultPath returns the config file path inside ConfigDir.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// GenerateCUE renders cfg as a config file. Empty optional strings are
// emitted as comments so the file documents every key.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modwatch configuration.\n")
	sb.WriteString("// Every key is optional; " + EnvPrefix + "_<SECTION>_<KEY> environment variables override it.\n\n")

	sb.WriteString("watch: {\n")
	optionalString(&sb, "root", cfg.Watch.Root)
	fmt.Fprintf(&sb, "\tinterval:            %d\n", cfg.Watch.Interval)
	fmt.Fprintf(&sb, "\tinterval_unit:       %q\n", cfg.Watch.IntervalUnit)
	fmt.Fprintf(&sb, "\tallow_overlap:       %v\n", cfg.Watch.AllowOverlap)
	fmt.Fprintf(&sb, "\tbootstrap:           %v\n", cfg.Watch.Bootstrap)
	fmt.Fprintf(&sb, "\tdisabled:            %v\n", cfg.Watch.Disabled)
	sb.WriteString("\tignore: [")
	for i, pat := range cfg.Watch.Ignore {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", pat)
	}
	sb.WriteString("]\n")
	fmt.Fprintf(&sb, "\tqueue_limit:         %d\n", cfg.Watch.QueueLimit)
	fmt.Fprintf(&sb, "\tcallback_timeout_ms: %d\n", cfg.Watch.CallbackTimeoutMs)
	sb.WriteString("}\n\n")

	sb.WriteString("deploy: {\n")
	fmt.Fprintf(&sb, "\ttrigger:   %q\n", cfg.Deploy.Trigger)
	fmt.Fprintf(&sb, "\textension: %q\n", cfg.Deploy.Extension)
	optionalString(&sb, "dir", cfg.Deploy.Dir)
	sb.WriteString("}\n\n")

	sb.WriteString("reload: {\n")
	optionalString(&sb, "hook", cfg.Reload.Hook)
	fmt.Fprintf(&sb, "\ttimeout_ms: %d\n", cfg.Reload.TimeoutMs)
	fmt.Fprintf(&sb, "\tcoalesce:   %v\n", cfg.Reload.Coalesce)
	sb.WriteString("}\n\n")

	sb.WriteString("log: {\n")
	fmt.Fprintf(&sb, "\tlevel:      %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\ttimestamps: %v\n", cfg.Log.Timestamps)
	fmt.Fprintf(&sb, "\tjson:       %v\n", cfg.Log.JSON)
	sb.WriteString("}\n\n")

	sb.WriteString("metrics: {\n")
	fmt.Fprintf(&sb, "\taddr: %q\n", cfg.Metrics.Addr)
	sb.WriteString("}\n")

	return sb.String()
}

func optionalString(sb *strings.Builder, key, value string) {
	if value == "" {
		fmt.Fprintf(sb, "\t// %s: \"\"\n", key)
		return
	}
	fmt.Fprintf(sb, "\t%s: %q\n", key, value)
}
