package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/railrunner/internal/audit"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/host"
	"github.com/nerrad567/railrunner/internal/infrastructure/config"
	"github.com/nerrad567/railrunner/internal/infrastructure/logging"
	"github.com/nerrad567/railrunner/internal/rail"
	"github.com/nerrad567/railrunner/internal/station"
	"github.com/nerrad567/railrunner/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each dependency check made by GET /health.
const healthCheckTimeout = 2 * time.Second

// Engine is the part of the automation engine the API drives.
// *engine.Engine satisfies this interface. Its methods are only called
// from inside Executor.Do.
type Engine interface {
	Running() bool
	MapID() string
	Triggers() []*trigger.Trigger
	Trigger(id int) (*trigger.Trigger, bool)
	AddTrigger(ctx context.Context, position rail.Vector3, opts trigger.Options) (*trigger.Trigger, error)
	UpdateTrigger(ctx context.Context, id int, opts trigger.Options) (*trigger.Trigger, error)
	MoveTrigger(ctx context.Context, id int, position rail.Vector3) (*trigger.Trigger, error)
	RemoveTrigger(ctx context.Context, id int) error
	Show(observer string) int
	Vehicles() []automation.Status
	ToggleAutomation(ctx context.Context, vehicle host.EntityID) (bool, error)
	Stations() []station.Info
}

// Executor runs fn on the engine's event loop and waits for its result.
// *scheduler.Loop satisfies this interface.
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

// HealthChecker is implemented by infrastructure clients reported on
// GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Engine   Engine
	Loop     Executor
	Hub      *Hub // If set, the server uses this hub instead of creating its own
	Checks   map[string]HealthChecker
	Audit    audit.Repository // Optional; GET /audit answers 503 without it
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	engine      Engine
	loop        Executor
	checks      map[string]HealthChecker
	audit       audit.Repository
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Loop == nil {
		return nil, fmt.Errorf("event loop is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		engine:  deps.Engine,
		loop:    deps.Loop,
		checks:  deps.Checks,
		audit:   deps.Audit,
		version: deps.Version,
		hub:     deps.Hub,
	}
	if s.hub != nil {
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub the server broadcasts on.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub if the server owns it
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// call runs fn on the event loop with the request context.
func (s *Server) call(ctx context.Context, fn func() error) error {
	return s.loop.Do(ctx, fn)
}
