// SPDX-License-Identifier: MPL-2.0

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invowk/modwatch/internal/core/lifecycle"
	"github.com/invowk/modwatch/internal/deploy"
	"github.com/invowk/modwatch/internal/issue"
	"github.com/invowk/modwatch/internal/logging"
)

type stubDeployment string

func (d stubDeployment) ID() string                     { return string(d) }
func (stubDeployment) Undeploy(context.Context) error { return nil }

type stubLister []deploy.Entry

func (l stubLister) Active() []deploy.Entry { return l }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	var unhealthy error
	r := NewRouter(func() error { return unhealthy }, nil, nil, logging.Discard())

	rec := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	unhealthy = errors.New("watch engine stopped")
	rec = get(t, r, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","error":"watch engine stopped"}`, rec.Body.String())
}

func TestDeployments(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRouter(nil, nil, stubLister{
		{Path: "/srv/a.modpkg", Module: "io.example.a@1.0.0", Deployment: stubDeployment("d1"), DeployedAt: at},
	}, logging.Discard())

	rec := get(t, r, "/deployments")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []DeploymentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].Deployment)
	assert.Equal(t, "io.example.a@1.0.0", got[0].Module)
	assert.True(t, at.Equal(got[0].DeployedAt))
}

func TestEmptyDeploymentsIsArray(t *testing.T) {
	t.Parallel()

	rec := get(t, NewRouter(nil, nil, stubLister(nil), logging.Discard()), "/deployments")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestOptionalRoutes(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, nil, nil, logging.Discard())
	assert.Equal(t, http.StatusNotFound, get(t, r, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/deployments").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "up 1\n") })
	r = NewRouter(nil, metrics, nil, logging.Discard())
	rec := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "up 1\n", rec.Body.String())
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()

	r := NewRouter(func() error { panic("boom") }, nil, nil, logging.Discard())
	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/healthz").Code)
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0", NewRouter(nil, nil, nil, logging.Discard()), WithLogger(logging.Discard()))
	require.NoError(t, srv.Start(context.Background()))
	assert.Equal(t, lifecycle.StateRunning, srv.State())
	require.ErrorIs(t, srv.Start(context.Background()), lifecycle.ErrAlreadyStarted)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.Equal(t, lifecycle.StateStopped, srv.State())
	require.NoError(t, srv.Stop(ctx), "second stop is a no-op")

	_, err = http.Get("http://" + srv.Addr() + "/healthz")
	assert.Error(t, err)
}

func TestServerListenFailure(t *testing.T) {
	t.Parallel()

	first := NewServer("127.0.0.1:0", http.NotFoundHandler(), WithLogger(logging.Discard()))
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := NewServer(first.Addr(), http.NotFoundHandler(), WithLogger(logging.Discard()))
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, lifecycle.StateFailed, second.State())
	require.NotNil(t, issue.IssueOf(err))
	assert.Equal(t, issue.AdminListenFailedId, issue.IssueOf(err).Id())
}
