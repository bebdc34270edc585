// SPDX-License-Identifier: MPL-2.0

package admin

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/invowk/modwatch/internal/deploy"
)

type (
	// DeploymentLister is implemented by *deploy.Coordinator.
	DeploymentLister interface {
		Active() []deploy.Entry
	}

	// HealthFunc reports nil while the service is healthy.
	HealthFunc func() error

	// DeploymentView is one element of the /deployments response.
	DeploymentView struct {
		Path       string    `json:"path"`
		Module     string    `json:"module"`
		Deployment string    `json:"deployment"`
		DeployedAt time.Time `json:"deployed_at"`
	}

	healthView struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
)

// NewRouter builds the admin routes. metrics and deployments may be nil, in
// which case their routes answer 404.
func NewRouter(health HealthFunc, metrics http.Handler, deployments DeploymentLister, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "admin"})
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthView{Status: "unavailable", Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthView{Status: "ok"})
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	if deployments != nil {
		r.Get("/deployments", func(w http.ResponseWriter, _ *http.Request) {
			entries := deployments.Active()
			out := make([]DeploymentView, 0, len(entries))
			for _, e := range entries {
				out = append(out, DeploymentView{
					Path:       e.Path,
					Module:     e.Module,
					Deployment: e.Deployment.ID(),
					DeployedAt: e.DeployedAt,
				})
			}
			writeJSON(w, http.StatusOK, out)
		})
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // client went away; nothing to do
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("admin request", "method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "elapsed", time.Since(start))
		})
	}
}
