package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/swissarmyhammer/agentcore/internal/acpserver"
	"github.com/swissarmyhammer/agentcore/internal/cancel"
	"github.com/swissarmyhammer/agentcore/internal/clienttool"
	"github.com/swissarmyhammer/agentcore/internal/command"
	"github.com/swissarmyhammer/agentcore/internal/llmstream"
	"github.com/swissarmyhammer/agentcore/internal/orchestrator"
	"github.com/swissarmyhammer/agentcore/internal/permission"
	"github.com/swissarmyhammer/agentcore/internal/planmgr"
	"github.com/swissarmyhammer/agentcore/internal/session"
	"github.com/swissarmyhammer/agentcore/internal/sharing"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// Config holds HTTP transport configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration, matching the
// teacher's defaults except WriteTimeout stays unbounded for SSE.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
}

// Server is the HTTP+SSE ACP transport.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	acp     *acpserver.Server
	bus     *notificationBus
	store   *session.Store

	// shares backs the /sessions/{id}/share and /share/{token} routes.
	// clientTools backs the /client-tools routes: the request/response
	// shape those need (a client registering tool definitions, then
	// later submitting a result against a pending ExecutionRequest) has
	// no stdio ACP equivalent, so it only exists on this transport.
	shares      *sharing.Manager
	clientTools *clienttool.Registry
}

// New wires the HTTP transport around the same dispatch table the stdio
// transport uses. Interactive request_permission has no duplex channel
// over plain HTTP, so policy is expected to be a non-interactive policy
// (e.g. permission.AlwaysAskPolicy degraded to auto-deny by the caller)
// -- see NewAutoDenyRequester.
func New(
	cfg *Config,
	store *session.Store,
	cancelReg *cancel.Registry,
	plans *planmgr.Manager,
	query llmstream.Query,
	toolExec orchestrator.ToolExecutor,
	policy permission.Policy,
	agentCaps acp.CapabilitySet,
	orchCfg orchestrator.Config,
	availableTools map[string]session.ToolDescriptor,
	cmds *command.Executor,
) *Server {
	bus := newNotificationBus()

	s := &Server{
		config:      cfg,
		router:      chi.NewRouter(),
		bus:         bus,
		store:       store,
		shares:      sharing.NewManager(""),
		clientTools: clienttool.NewRegistry(),
	}
	s.acp = acpserver.NewHTTPServer(
		store, cancelReg, plans, query, toolExec, policy, agentCaps, orchCfg,
		availableTools, cmds,
		bus.publish, NewAutoDenyRequester(),
	)

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start starts the HTTP server. Blocks until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the
// notification bus.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.bus.Close(); err != nil {
		return err
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router, for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
