// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/invowk/modwatch/internal/admin"
	"github.com/invowk/modwatch/internal/config"
	"github.com/invowk/modwatch/internal/core/lifecycle"
	"github.com/invowk/modwatch/internal/deploy"
	"github.com/invowk/modwatch/internal/host"
	"github.com/invowk/modwatch/internal/issue"
	"github.com/invowk/modwatch/internal/logging"
	"github.com/invowk/modwatch/internal/metrics"
	"github.com/invowk/modwatch/internal/reload"
	"github.com/invowk/modwatch/internal/watch"
	"github.com/invowk/modwatch/pkg/modpkg"
)

const adminShutdownTimeout = 5 * time.Second

type (
	serveFlags struct {
		interval    time.Duration
		trigger     string
		deployDir   string
		ignore      []string
		noBootstrap bool
		noOverlap   bool
		disabled    bool
		metricsAddr string
		reloadHook  string
		logLevel    string
	}

	// service is one assembled serve run: host, coordinator, engine and the
	// optional admin server.
	service struct {
		cfg       *config.Config
		logger    *log.Logger
		host      *host.Local
		coalescer *reload.Coalescer
		coord     *deploy.Coordinator
		engine    *watch.Engine
		admin     *admin.Server
	}
)

func newServeCommand(app *App) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Watch a directory tree and hot-deploy module packages",
		Long: `Watch a directory tree and hot-deploy module packages.

Packages already in the tree are deployed at start unless --no-bootstrap
is given. With the copy trigger a package is deployed once it has been
written (modified); with the move trigger it is deployed when it appears.
Deleting a package undeploys it.

Flags override the configuration file and MODWATCH_* environment variables.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.Config.Resolve(cmd.Context(), config.LoadOptions{ConfigFilePath: app.flags.configPath})
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Watch.Root = args[0]
			}
			applyServeFlags(cmd.Flags(), flags, cfg)

			if err := cfg.Validate(); err != nil {
				return issue.NewErrorContext().
					WithOperation("validate configuration").
					WithSuggestion("Run 'modwatch config show' to see the effective values").
					WithIssue(issue.ConfigLoadFailedId).
					Wrap(err).
					BuildError()
			}

			logger, err := logging.New(logging.Options{
				Level:      cfg.Log.Level,
				Timestamps: cfg.Log.Timestamps,
				JSON:       cfg.Log.JSON,
				Output:     app.stderr,
			})
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&flags.interval, "interval", 0, "poll interval (e.g. 500ms, 2s)")
	f.StringVar(&flags.trigger, "trigger", "", "deployment trigger: copy or move")
	f.StringVar(&flags.deployDir, "deploy-dir", "", "directory receiving unpacked deployments")
	f.StringSliceVar(&flags.ignore, "ignore", nil, "glob of paths to ignore, relative to the root (repeatable)")
	f.BoolVar(&flags.noBootstrap, "no-bootstrap", false, "do not deploy packages already present at start")
	f.BoolVar(&flags.noOverlap, "no-overlap", false, "skip a poll cycle while the previous one still runs")
	f.BoolVar(&flags.disabled, "disabled", false, "start with watching disabled and exit")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "listen address of the admin endpoint (empty disables it)")
	f.StringVar(&flags.reloadHook, "reload-hook", "", "shell snippet run after deployments change")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(fs *pflag.FlagSet, flags *serveFlags, cfg *config.Config) {
	if fs.Changed("interval") {
		cfg.Watch.Interval = int(flags.interval.Milliseconds())
		cfg.Watch.IntervalUnit = config.IntervalMillis
	}
	if fs.Changed("trigger") {
		cfg.Deploy.Trigger = deploy.Trigger(flags.trigger)
	}
	if fs.Changed("deploy-dir") {
		cfg.Deploy.Dir = flags.deployDir
	}
	if fs.Changed("ignore") {
		cfg.Watch.Ignore = flags.ignore
	}
	if fs.Changed("no-bootstrap") {
		cfg.Watch.Bootstrap = !flags.noBootstrap
	}
	if fs.Changed("no-overlap") {
		cfg.Watch.AllowOverlap = !flags.noOverlap
	}
	if fs.Changed("disabled") {
		cfg.Watch.Disabled = flags.disabled
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}
	if fs.Changed("reload-hook") {
		cfg.Reload.Hook = flags.reloadHook
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
}

// runServe serves until ctx is canceled, the engine stops on its own (disabled
// watching) or a component fails.
func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	svc, err := newService(cfg, logger)
	if err != nil {
		return err
	}
	if err := svc.start(ctx); err != nil {
		svc.shutdown()
		return err
	}
	runErr := svc.wait(ctx)
	svc.shutdown()
	return runErr
}

func newService(cfg *config.Config, logger *log.Logger) (*service, error) {
	deployDir := cfg.Deploy.Dir
	if deployDir == "" {
		dir, err := config.DefaultDeployDir()
		if err != nil {
			return nil, err
		}
		deployDir = dir
	}

	h, err := host.NewLocal(deployDir, host.WithLogger(logging.Component(logger, "host")))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("prepare deployment directory").
			WithResource(deployDir).
			WithSuggestion("Point deploy.dir (or --deploy-dir) at a writable directory outside the watch root").
			WithIssue(issue.DeployDirUnavailableId).
			Wrap(err).
			BuildError()
	}

	s := &service{cfg: cfg, logger: logger, host: h}

	reloader, err := s.newReloader()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("prepare reload hook").
			WithSuggestion("Check the reload.hook shell syntax").
			WithIssue(issue.ReloadHookFailedId).
			Wrap(err).
			BuildError()
	}

	s.coord, err = deploy.New(modpkg.Parser{}, h,
		deploy.WithTrigger(cfg.Deploy.Trigger),
		deploy.WithExtension(cfg.Deploy.Extension),
		deploy.WithReloader(reloader),
		deploy.WithLogger(logging.Component(logger, "deploy")),
	)
	if err != nil {
		return nil, err
	}

	s.engine, err = watch.New(cfg.Watch.Root, s.coord,
		watch.WithInterval(cfg.Watch.PollInterval()),
		watch.WithOverlap(cfg.Watch.AllowOverlap),
		watch.WithBootstrap(cfg.Watch.Bootstrap),
		watch.WithDisabled(cfg.Watch.Disabled),
		watch.WithIgnore(cfg.Watch.Ignore...),
		watch.WithQueueLimit(cfg.Watch.QueueLimit),
		watch.WithCallbackTimeout(cfg.Watch.CallbackTimeout()),
		watch.WithLogger(logging.Component(logger, "watch")),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		if s.admin, err = s.newAdmin(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// newReloader picks the hook or the log-only reloader and coalesces it when
// configured.
func (s *service) newReloader() (reload.Reloader, error) {
	var next reload.Reloader
	if s.cfg.Reload.Hook == "" {
		next = reload.NewLog(logging.Component(s.logger, "reload"), s.deploymentNames)
	} else {
		hook, err := reload.NewHook(s.cfg.Reload.Hook,
			reload.WithDir(s.host.Dir()),
			reload.WithEnv(os.Environ()),
			reload.WithTimeout(s.cfg.Reload.HookTimeout()),
			reload.WithDeployments(s.deploymentDirs),
			reload.WithHookLogger(logging.Component(s.logger, "reload")),
		)
		if err != nil {
			return nil, err
		}
		next = hook
	}

	if !s.cfg.Reload.Coalesce {
		return next, nil
	}
	s.coalescer = reload.Coalesce(next)
	return s.coalescer, nil
}

func (s *service) newAdmin() (*admin.Server, error) {
	src := metrics.Sources{Watch: s.engine, Deploy: s.coord}
	if s.coalescer != nil {
		src.Reload = s.coalescer
	}
	reg, err := metrics.NewRegistry(src)
	if err != nil {
		return nil, err
	}

	adminLogger := logging.Component(s.logger, "admin")
	router := admin.NewRouter(s.health, metrics.Handler(reg), s.coord, adminLogger)
	return admin.NewServer(s.cfg.Metrics.Addr, router, admin.WithLogger(adminLogger)), nil
}

func (s *service) start(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return watchStartError(s.engine.Root(), err)
	}
	if s.admin != nil {
		if err := s.admin.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// wait blocks until the run is over. Disabled watching ends the run cleanly
// once the engine stopped itself.
func (s *service) wait(ctx context.Context) error {
	var adminErr <-chan error
	if s.admin != nil {
		adminErr = s.admin.Err()
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return nil
	case <-s.engine.Done():
		if s.engine.State() != lifecycle.StateFailed {
			return nil
		}
		select {
		case err := <-s.engine.Err():
			return &ExitError{Code: ExitCodeWatchFailed, Err: watchRunError(s.engine.Root(), err)}
		default:
			return &ExitError{Code: ExitCodeWatchFailed, Err: errors.New("watch engine failed")}
		}
	case err := <-s.engine.Err():
		return &ExitError{Code: ExitCodeWatchFailed, Err: watchRunError(s.engine.Root(), err)}
	case err := <-adminErr:
		return err
	}
}

// shutdown stops the engine first so no new callbacks start, then the admin
// server, then waits for in-flight teardowns.
func (s *service) shutdown() {
	if err := s.engine.Stop(); err != nil {
		s.logger.Warn("stop watch engine", "error", err)
	}
	if s.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		if err := s.admin.Stop(ctx); err != nil {
			s.logger.Warn("stop admin server", "error", err)
		}
		cancel()
	}
	s.coord.Wait()
}

func (s *service) health() error {
	if state := s.engine.State(); state != lifecycle.StateRunning {
		return fmt.Errorf("watch engine is %s", state)
	}
	return nil
}

func (s *service) deploymentNames() []string {
	infos := s.host.List()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Module+"@"+info.Version)
	}
	return names
}

func (s *service) deploymentDirs() []string {
	infos := s.host.List()
	dirs := make([]string, 0, len(infos))
	for _, info := range infos {
		dirs = append(dirs, info.Dir)
	}
	return dirs
}

func watchStartError(root string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("start watching").
		WithResource(root).
		Wrap(err)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		ctx.WithIssue(issue.WatchRootNotFoundId).
			WithSuggestion("Create the directory or pass an existing one to 'modwatch serve'")
	case errors.Is(err, fs.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case watch.IsResourceExhausted(err):
		ctx.WithIssue(issue.WatchLimitReachedId).
			WithSuggestion("Raise fs.inotify.max_user_watches or watch a smaller tree")
	}
	return ctx.BuildError()
}

func watchRunError(root string, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("keep watching").
		WithResource(root).
		Wrap(err)
	if watch.IsResourceExhausted(err) {
		ctx.WithIssue(issue.WatchLimitReachedId).
			WithSuggestion("Raise fs.inotify.max_user_watches or watch a smaller tree")
	}
	return ctx.BuildError()
}
