// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes watch engine and deployment coordinator counters
// as Prometheus collectors. Values are read from the components on scrape,
// so nothing has to be updated on the hot path.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/invowk/modwatch/internal/deploy"
	"github.com/invowk/modwatch/internal/watch"
)

const namespace = "modwatch"

type (
	// WatchSource is implemented by *watch.Engine.
	WatchSource interface {
		Metrics() watch.Metrics
	}

	// DeploySource is implemented by *deploy.Coordinator.
	DeploySource interface {
		Metrics() deploy.Metrics
	}

	// ReloadSource is implemented by *reload.Coalescer.
	ReloadSource interface {
		Runs() uint64
	}

	// Sources lists the components to expose. Nil fields are skipped.
	Sources struct {
		Watch  WatchSource
		Deploy DeploySource
		Reload ReloadSource
	}
)

// Register adds a collector per counter to reg.
func Register(reg prometheus.Registerer, src Sources) error {
	var cs []prometheus.Collector

	if w := src.Watch; w != nil {
		cs = append(cs,
			counter("watch", "cycles_started_total", "Poll cycles that drained the watched directories.",
				func() float64 { return float64(w.Metrics().CyclesStarted) }),
			counter("watch", "cycles_skipped_total", "Poll ticks skipped because the previous cycle was still running.",
				func() float64 { return float64(w.Metrics().CyclesSkipped) }),
			counter("watch", "events_dispatched_total", "Created, modified and deleted callbacks invoked.",
				func() float64 { return float64(w.Metrics().EventsDispatched) }),
			counter("watch", "callback_failures_total", "Callbacks that returned an error, panicked or timed out.",
				func() float64 { return float64(w.Metrics().CallbackFailures) }),
			counter("watch", "overflows_total", "Native overflow notifications received.",
				func() float64 { return float64(w.Metrics().Overflows) }),
			gauge("watch", "registrations", "Directories currently registered with the native watcher.",
				func() float64 { return float64(w.Metrics().Registrations) }),
		)
	}

	if d := src.Deploy; d != nil {
		cs = append(cs,
			counter("deploy", "deployments_total", "Packages deployed.",
				func() float64 { return float64(d.Metrics().Deploys) }),
			counter("deploy", "deploy_failures_total", "Packages that failed to parse or deploy.",
				func() float64 { return float64(d.Metrics().DeployFailures) }),
			counter("deploy", "undeployments_total", "Deployments undeployed, superseded or deleted.",
				func() float64 { return float64(d.Metrics().Undeploys) }),
			counter("deploy", "undeploy_failures_total", "Undeploys that failed.",
				func() float64 { return float64(d.Metrics().TeardownFailures) }),
			counter("deploy", "reload_failures_total", "Model reload signals that failed.",
				func() float64 { return float64(d.Metrics().ReloadFailures) }),
			gauge("deploy", "active", "Package paths with a live deployment.",
				func() float64 { return float64(d.Metrics().Active) }),
		)
	}

	if r := src.Reload; r != nil {
		cs = append(cs, counter("reload", "runs_total", "Model reloads actually executed after coalescing.",
			func() float64 { return float64(r.Runs()) }))
	}

	var errs []error
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry returns a registry holding the Go runtime and process
// collectors plus the modwatch collectors for src.
func NewRegistry(src Sources) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := Register(reg, src); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func counter(subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

func gauge(subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}
