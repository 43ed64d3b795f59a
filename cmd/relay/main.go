package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ticker-relay/internal/config"
	"github.com/rickgao/ticker-relay/internal/hub"
	"github.com/rickgao/ticker-relay/internal/notify"
	"github.com/rickgao/ticker-relay/internal/relay"
	"github.com/rickgao/ticker-relay/internal/server"
	"github.com/rickgao/ticker-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		config.NewLogger(config.LogConfig{}, os.Stderr).Error("failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		config.NewLogger(config.LogConfig{}, os.Stderr).Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := config.NewLogger(cfg.Log, os.Stdout).With("instance", cfg.Instance.ID)
	logger.Info("starting ticker relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.New(hubConfig(cfg.Hub), logger.With("component", "hub"))
	r := relay.New(relayConfig(cfg.Upstream), logger.With("component", "relay"))

	src, err := notify.New(cfg.Notify, r, logger)
	if err != nil {
		logger.Error("failed to create notification source", "error", err)
		os.Exit(1)
	}

	if err := r.Initialize(ctx, h); err != nil {
		logger.Error("failed to initialize relay", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Server, r, h, src, logger.With("component", "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	if src != nil {
		g.Go(func() error { return src.Run(gctx) })
	} else {
		logger.Info("notification source disabled")
	}

	// Shut everything down once a signal arrives or a component fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", "error", err)
		}
		if err := h.Close(shutdownCtx); err != nil {
			logger.Warn("hub close", "error", err)
		}
		return r.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("ticker relay exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("ticker relay stopped")
}

func relayConfig(u config.UpstreamConfig) relay.Config {
	return relay.Config{
		URL:               u.URL,
		StreamSuffix:      u.StreamSuffix,
		ReconnectDelay:    u.ReconnectDelay,
		ReplayOnReconnect: u.ReplayEnabled(),
		PingTimeout:       u.PingTimeout,
		WriteTimeout:      u.WriteTimeout,
		BufferSize:        u.BufferSize,
	}
}

func hubConfig(c config.HubConfig) hub.Config {
	return hub.Config{
		WriteWait:      c.WriteWait,
		PongWait:       c.PongWait,
		MaxMessageSize: c.MaxMessageSize,
		QueueSize:      c.QueueSize,
		AllowedOrigins: c.AllowedOrigins,
	}
}
