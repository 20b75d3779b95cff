package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/yndnr/authctl/internal/session"
	"github.com/yndnr/authctl/internal/telemetry/logger"
	"github.com/yndnr/authctl/internal/telemetry/metric"
)

// DefaultReadHeaderTimeout bounds how long a client may take to send
// request headers.
const DefaultReadHeaderTimeout = 10 * time.Second

// Config configures the gateway.
type Config struct {
	// Addr is the listen address, e.g. 127.0.0.1:8787.
	Addr string

	// Manager performs the authenticated calls. Required.
	Manager *session.Manager

	// Metrics is served on /metrics when set.
	Metrics *metric.Registry

	Logger logger.Logger
}

// NewHandler builds the gateway routes and middleware.
func NewHandler(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	mux.Handle(APIPrefix+"/", &forwarder{m: cfg.Manager, log: log})
	mux.Handle("GET /healthz", healthHandler(cfg.Manager))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	return Chain(mux,
		Recover(log),
		RequestID(),
		AccessLog(log),
		LocalOnly(log),
	)
}

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	ln         net.Listener
	addr       string
	log        logger.Logger
}

// New creates a gateway server. Call Listen then Serve, or ListenAndServe.
func New(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("proxy: session manager is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		httpServer: &http.Server{
			Handler:           NewHandler(cfg),
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
		},
		addr: cfg.Addr,
		log:  log,
	}, nil
}

// Listen binds the listen address so Addr reports the actual port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("proxy: listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.log.Info("gateway listening", "addr", s.Addr())

	if err := s.httpServer.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds and serves.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("gateway shutting down")
	return s.httpServer.Shutdown(ctx)
}
