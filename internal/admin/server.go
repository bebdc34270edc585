// SPDX-License-Identifier: MPL-2.0

package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/invowk/modwatch/internal/core/lifecycle"
	"github.com/invowk/modwatch/internal/issue"
)

const readHeaderTimeout = 5 * time.Second

type (
	// Server runs the admin router on a TCP address.
	Server struct {
		addr    string
		handler http.Handler
		logger  *log.Logger
		machine *lifecycle.Machine

		srv *http.Server
		ln  net.Listener
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithLogger sets the server logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a stopped server for handler on addr.
func NewServer(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{addr: addr, handler: handler}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "admin"})
	}
	s.machine = lifecycle.New(lifecycle.WithName("admin"))
	return s
}

// Start listens and serves in the background. It returns once the listener
// is bound, so Addr is valid afterwards.
func (s *Server) Start(ctx context.Context) error {
	if err := s.machine.Starting(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		err = issue.NewErrorContext().
			WithOperation("start admin endpoint").
			WithResource(s.addr).
			WithSuggestion("Choose a free address with --metrics-addr").
			WithIssue(issue.AdminListenFailedId).
			Wrap(err).
			BuildError()
		s.machine.Fail(err)
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.machine.Context() },
	}

	s.machine.Go(func(context.Context) {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.machine.Report(fmt.Errorf("admin: serve: %w", err))
		}
	})
	s.machine.Running()
	s.logger.Info("admin endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	if !s.machine.Stopping() {
		return nil
	}
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.machine.Wait()
	s.machine.Stopped()
	return err
}

// Err publishes serve failures after Start.
func (s *Server) Err() <-chan error { return s.machine.Err() }

// State returns the server lifecycle state.
func (s *Server) State() lifecycle.State { return s.machine.State() }
