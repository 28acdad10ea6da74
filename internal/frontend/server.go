// Package frontend implements the TCP front door: one listener per
// configured port/version/behavior, each accepting connections onto a
// shared per-connection handler (spec.md §4H).
package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openpso/server/internal/client"
	"github.com/openpso/server/internal/config"
	"github.com/openpso/server/internal/constants"
)

// ConnHandler processes one accepted connection to completion. It owns
// the connection's lifetime: it must return once the connection should be
// closed, and the caller closes conn immediately after it returns.
type ConnHandler func(ctx context.Context, c *client.Client)

// Server supervises one listener per configured port, each running its
// own accept loop under a shared errgroup.Group (spec.md §4H's
// multi-listener worker pool, generalizing the teacher's single-listener
// acceptLoop in internal/login/server.go to many simultaneous listeners,
// one per client dialect).
type Server struct {
	Config  config.Config
	Handler ConnHandler
	Log     *slog.Logger

	listeners []net.Listener
}

// New creates a Server bound to cfg, dispatching every accepted
// connection to handler.
func New(cfg config.Config, handler ConnHandler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Config: cfg, Handler: handler, Log: log}
}

// Run opens a listener for every configured port and serves until ctx is
// canceled or a listener fails to bind. It returns the first error
// encountered opening any listener, or nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, port := range s.Config.Ports {
		version, ok := constants.ParseVersion(port.Version)
		if !ok {
			return fmt.Errorf("frontend: port %d: unknown version %q", port.Port, port.Version)
		}

		addr := fmt.Sprintf(":%d", port.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("frontend: listening on %s: %w", addr, err)
		}
		s.listeners = append(s.listeners, ln)

		port, version, ln := port, version, ln
		group.Go(func() error {
			s.Log.Info("listener started", "port", port.Port, "version", version, "behavior", port.Behavior)
			return s.acceptLoop(groupCtx, ln, version)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		for _, ln := range s.listeners {
			ln.Close()
		}
		return nil
	})

	return group.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, version constants.Version) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("frontend: accept on %s: %w", ln.Addr(), err)
		}

		connID := uuid.NewString()
		log := s.Log.With("conn", connID, "remote", conn.RemoteAddr(), "version", version)
		go s.handleConn(ctx, conn, version, log)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, version constants.Version, log *slog.Logger) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Info("client connected")
	c := client.New(version, conn, log)

	start := time.Now()
	s.Handler(ctx, c)
	log.Info("client disconnected", "duration", time.Since(start))
}

// Close closes every open listener, unblocking each accept loop.
func (s *Server) Close() error {
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
