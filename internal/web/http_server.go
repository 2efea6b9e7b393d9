package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rook-computer/lockscreen/internal/logging"
)

const (
	readHeaderTimeout = 5 * time.Second
	// Handlers wait up to mainLoopTimeout on the main loop, so in-flight
	// requests get a little longer than that to drain.
	shutdownTimeout = mainLoopTimeout + time.Second
)

var (
	errServerStopped = errors.New("control server already stopped")
	errNoController  = errors.New("control server has no controller")
	errNoListenAddr  = errors.New("control server has no listen address")
)

// HTTPServer exposes a Controller (the running lock screen) over the v1
// control routes. It runs until Stop or until the context passed to Start
// is done, and cannot be started again afterwards.
type HTTPServer struct {
	Config     ServerConfig
	Controller Controller
	Logger     logging.Logger

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	stopped bool
}

func NewHTTPServer(cfg ServerConfig, ctrl Controller, logger logging.Logger) *HTTPServer {
	return &HTTPServer{Config: cfg, Controller: ctrl, Logger: logger}
}

// Start binds the listen address and serves in the background. Calling it on
// a running server is a no-op.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		return errServerStopped
	case s.srv != nil:
		return nil
	case s.Controller == nil:
		return errNoController
	case !s.Config.Enabled():
		return errNoListenAddr
	}
	log := logging.OrNoop(s.Logger)

	ln, err := net.Listen("tcp", s.Config.ListenAddr)
	if err != nil {
		return fmt.Errorf("control server: listen %s: %w", s.Config.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           NewDefaultMux(s.Controller, s.Config, log),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.srv, s.ln = srv, ln
	log.Infof("web", "control server on http://%s/api/v1/ (dev=%v)", ln.Addr(), s.Config.DevMode)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("web", "control server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			log.Warnf("web", "control server shutdown: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address, useful with a ":0" listen address. It is empty
// unless the server is running.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down, letting in-flight requests finish for a short
// while. Only the first call does anything.
func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
