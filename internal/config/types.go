// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/invowk/modwatch/internal/deploy"
	"github.com/invowk/modwatch/internal/watch"
	"github.com/invowk/modwatch/pkg/modpkg"
)

const (
	// IntervalMillis measures watch.interval in milliseconds.
	IntervalMillis IntervalUnit = "ms"
	// IntervalSeconds measures watch.interval in seconds.
	IntervalSeconds IntervalUnit = "s"
	// IntervalMinutes measures watch.interval in minutes.
	IntervalMinutes IntervalUnit = "m"
)

// ErrInvalidConfig is wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// IntervalUnit is the time unit of watch.interval.
	IntervalUnit string

	// InvalidConfigError collects every field error found by Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
		Deploy  DeployConfig  `json:"deploy" mapstructure:"deploy"`
		Reload  ReloadConfig  `json:"reload" mapstructure:"reload"`
		Log     LogConfig     `json:"log" mapstructure:"log"`
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	}

	// WatchConfig configures the directory watch engine.
	WatchConfig struct {
		// Root is the directory tree watched for packages.
		Root         string       `json:"root" mapstructure:"root"`
		Interval     int          `json:"interval" mapstructure:"interval"`
		IntervalUnit IntervalUnit `json:"interval_unit" mapstructure:"interval_unit"`
		// AllowOverlap lets a poll cycle start while the previous one still runs.
		AllowOverlap bool `json:"allow_overlap" mapstructure:"allow_overlap"`
		// Bootstrap reports packages already present as created at start.
		Bootstrap bool `json:"bootstrap" mapstructure:"bootstrap"`
		// Disabled starts the engine and stops it again shortly after.
		Disabled          bool     `json:"disabled" mapstructure:"disabled"`
		Ignore            []string `json:"ignore" mapstructure:"ignore"`
		QueueLimit        int      `json:"queue_limit" mapstructure:"queue_limit"`
		CallbackTimeoutMs int      `json:"callback_timeout_ms" mapstructure:"callback_timeout_ms"`
	}

	// DeployConfig configures the deployment coordinator and host.
	DeployConfig struct {
		Trigger   deploy.Trigger `json:"trigger" mapstructure:"trigger"`
		Extension string         `json:"extension" mapstructure:"extension"`
		// Dir receives unpacked deployments. Empty means the user cache dir.
		Dir string `json:"dir" mapstructure:"dir"`
	}

	// ReloadConfig configures the model reload signal.
	ReloadConfig struct {
		// Hook is a shell snippet run after deployment changes. Empty only logs.
		Hook      string `json:"hook" mapstructure:"hook"`
		TimeoutMs int    `json:"timeout_ms" mapstructure:"timeout_ms"`
		Coalesce  bool   `json:"coalesce" mapstructure:"coalesce"`
	}

	// LogConfig configures the root logger.
	LogConfig struct {
		Level      string `json:"level" mapstructure:"level"`
		Timestamps bool   `json:"timestamps" mapstructure:"timestamps"`
		JSON       bool   `json:"json" mapstructure:"json"`
	}

	// MetricsConfig configures the admin endpoint. An empty Addr disables it.
	MetricsConfig struct {
		Addr string `json:"addr" mapstructure:"addr"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Interval:     1,
			IntervalUnit: IntervalSeconds,
			AllowOverlap: true,
			Bootstrap:    true,
			Ignore:       []string{},
			QueueLimit:   watch.DefaultQueueLimit,
		},
		Deploy: DeployConfig{
			Trigger:   deploy.TriggerCopy,
			Extension: modpkg.Extension,
		},
		Reload: ReloadConfig{
			Coalesce: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Duration converts n units to a time.Duration.
func (u IntervalUnit) Duration(n int) (time.Duration, error) {
	switch u {
	case IntervalMillis:
		return time.Duration(n) * time.Millisecond, nil
	case IntervalSeconds:
		return time.Duration(n) * time.Second, nil
	case IntervalMinutes:
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid interval unit %q (valid: ms, s, m)", string(u))
	}
}

// PollInterval returns watch.interval as a duration.
func (w WatchConfig) PollInterval() time.Duration {
	d, err := w.IntervalUnit.Duration(w.Interval)
	if err != nil {
		return watch.DefaultInterval
	}
	return d
}

// CallbackTimeout returns watch.callback_timeout_ms as a duration.
func (w WatchConfig) CallbackTimeout() time.Duration {
	return time.Duration(w.CallbackTimeoutMs) * time.Millisecond
}

// HookTimeout returns reload.timeout_ms as a duration.
func (r ReloadConfig) HookTimeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// Validate checks the rules the schema cannot see, including values set
// from flags and the environment after the file was merged.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Watch.Root) == "" {
		errs = append(errs, errors.New("watch.root is required"))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("watch.interval must be positive, got %d", c.Watch.Interval))
	}
	if _, err := c.Watch.IntervalUnit.Duration(c.Watch.Interval); err != nil {
		errs = append(errs, fmt.Errorf("watch.interval_unit: %w", err))
	}
	if c.Watch.QueueLimit <= 0 {
		errs = append(errs, fmt.Errorf("watch.queue_limit must be positive, got %d", c.Watch.QueueLimit))
	}
	if c.Watch.CallbackTimeoutMs < 0 {
		errs = append(errs, errors.New("watch.callback_timeout_ms must not be negative"))
	}
	if err := watch.ValidatePatterns(c.Watch.Ignore); err != nil {
		errs = append(errs, fmt.Errorf("watch.ignore: %w", err))
	}
	if err := c.Deploy.Trigger.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("deploy.trigger: %w", err))
	}
	if len(c.Deploy.Extension) < 2 || c.Deploy.Extension[0] != '.' || strings.ContainsAny(c.Deploy.Extension, `/\`) {
		errs = append(errs, fmt.Errorf("deploy.extension %q must look like \".modpkg\"", c.Deploy.Extension))
	}
	if c.Deploy.Dir != "" && c.Watch.Root != "" && within(c.Deploy.Dir, c.Watch.Root) {
		errs = append(errs, fmt.Errorf("deploy.dir %q must not be inside watch.root %q", c.Deploy.Dir, c.Watch.Root))
	}
	if c.Reload.TimeoutMs < 0 {
		errs = append(errs, errors.New("reload.timeout_ms must not be negative"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	absPath, err1 := filepath.Abs(path)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
