package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/ticker-relay/internal/config"
	"github.com/rickgao/ticker-relay/internal/hub"
	"github.com/rickgao/ticker-relay/internal/notify"
	"github.com/rickgao/ticker-relay/internal/relay"
)

// Relay is the part of *relay.Relay the HTTP surface uses.
type Relay interface {
	State() relay.State
	Stats() relay.Stats
	Subscriptions() map[string][]string
	PushOrderUpdate(userID string, payload any)
	PushBalanceUpdate(userID string, payload any)
}

// Hub is the part of *hub.Hub the HTTP surface uses.
type Hub interface {
	http.Handler
	Stats() hub.Stats
}

// Server is the HTTP front of the relay.
type Server struct {
	cfg    config.ServerConfig
	relay  Relay
	hub    Hub
	notify notify.Source
	logger *slog.Logger

	engine *gin.Engine
	http   *http.Server
}

// New creates a server and registers its routes. src may be nil.
func New(cfg config.ServerConfig, r Relay, h Hub, src notify.Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WSPath == "" {
		cfg.WSPath = config.DefaultWSPath
	}

	s := &Server{
		cfg:    cfg,
		relay:  r,
		hub:    h,
		notify: src,
		logger: logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET(s.cfg.WSPath, gin.WrapH(s.hub))

	s.engine.GET("/health", s.getHealth)

	debug := s.engine.Group("/debug")
	debug.GET("/subscriptions", s.getSubscriptions)
	debug.GET("/stats", s.getStats)

	internal := s.engine.Group("/internal", bearerAuth(s.cfg.InternalToken))
	internal.POST("/users/:userID/orders", s.pushHandler(relay.EventOrderUpdate))
	internal.POST("/users/:userID/balances", s.pushHandler(relay.EventBalanceUpdate))
}

// Handler returns the gin engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr, "ws_path", s.cfg.WSPath)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked sockets are closed by the hub, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.http.Shutdown(ctx)
}
