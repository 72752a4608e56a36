package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/till-bridge/internal/device"
	"github.com/nerrad567/till-bridge/internal/drivers/printer"
	"github.com/nerrad567/till-bridge/internal/infrastructure/config"
	"github.com/nerrad567/till-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the gateway server.
type Deps struct {
	Config   config.GatewayConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Version  string

	// ListPrinters overrides OS printer enumeration; nil uses the real one.
	ListPrinters func() []printer.Info
}

// Server is the control-plane server: one HTTP listener carrying the
// status endpoint and the WebSocket session endpoint.
//
// Lifecycle:
//
//	server, err := gateway.New(deps)
//	server.Start(ctx)
//	defer server.Close()
type Server struct {
	cfg        config.GatewayConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *device.Registry
	gatekeeper *Gatekeeper
	version    string

	listPrinters func() []printer.Info

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc
}

// New creates a gateway server with the given dependencies. The server
// is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.Config.WebSocket,
		logger:       deps.Logger,
		registry:     deps.Registry,
		gatekeeper:   NewGatekeeper(deps.Security),
		version:      deps.Version,
		listPrinters: deps.ListPrinters,
	}
	if s.listPrinters == nil {
		s.listPrinters = printer.ListPrinters
	}

	return s, nil
}

// Start binds the listener and begins serving. The bind happens
// synchronously so a port conflict fails startup instead of surfacing
// later in a log line.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	go s.broadcastEvents(srvCtx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("gateway listening", "address", listener.Addr().String())
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the gateway. In-flight requests get up to
// ten seconds; open sessions are disconnected via the hub.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}

// Addr returns the bound listener address, useful when Port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// broadcastEvents relays driver-originated events to every session
// until the server context is cancelled.
func (s *Server) broadcastEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.registry.Events():
			if !ok {
				return
			}
			s.hub.Broadcast(eventToMessage(ev))
		}
	}
}

// eventToMessage maps a device event onto the wire shape.
func eventToMessage(ev device.Event) Message {
	switch ev.Kind {
	case device.EventBarcode:
		return Message{Type: TypeBarcode, Barcode: ev.Barcode}
	case device.EventWeight:
		w := ev.Weight
		return Message{Type: TypeWeight, Weight: &w}
	default:
		return errorMessage(ev.Message)
	}
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/status", s.handleStatus)
	r.Get(s.websocketPath(), s.handleSession)

	return r
}

// websocketPath returns the configured session endpoint path.
func (s *Server) websocketPath() string {
	if s.wsCfg.Path != "" {
		return s.wsCfg.Path
	}
	return "/ws"
}

// handleStatus reports gateway liveness and per-device availability.
// Unauthenticated: it is the endpoint the POS polls to find the
// gateway in the first place.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": s.registry.Status(),
	})
}
