// Package api provides the HTTP control API for attrcycled.
//
// It lists cyclers, reports their state, and accepts triggers, so a
// cycler can be stepped from scripts and dashboards as well as over MQTT.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/attrcycle/internal/cycle"
	"github.com/nerrad567/attrcycle/internal/history"
	"github.com/nerrad567/attrcycle/internal/infrastructure/config"
	"github.com/nerrad567/attrcycle/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Controllers is the cycler registry as seen by the API.
type Controllers interface {
	Get(id string) (*cycle.Controller, bool)
	List() []*cycle.Controller
	Flush(ctx context.Context) error
}

// HealthChecker is implemented by every infrastructure component.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// History lists recorded controller events.
type History interface {
	List(ctx context.Context, filter history.Filter) (*history.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Controllers Controllers

	// Checks are reported by the health endpoint, keyed by component name.
	Checks map[string]HealthChecker

	// History is optional; without it the history endpoint answers 503.
	History History

	// OnTrigger, if set, is called with the snapshot after each HTTP trigger.
	OnTrigger func(cycle.Snapshot)

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	controllers Controllers
	checks      map[string]HealthChecker
	history     History
	onTrigger   func(cycle.Snapshot)
	version     string
	startTime   time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a server. It does not listen until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controllers == nil {
		return nil, fmt.Errorf("controllers are required")
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		controllers: deps.Controllers,
		checks:      deps.Checks,
		history:     deps.History,
		onTrigger:   deps.OnTrigger,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Handler returns the router. Used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. A port that is
// already in use is reported here rather than from the goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to gracefulShutdownTimeout for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
