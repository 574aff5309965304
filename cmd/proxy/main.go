package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hasirciogluhq/xrelay-proxy/internal/api"
	"github.com/hasirciogluhq/xrelay-proxy/internal/config"
	"github.com/hasirciogluhq/xrelay-proxy/internal/core"
	"github.com/hasirciogluhq/xrelay-proxy/internal/factory"
	"github.com/hasirciogluhq/xrelay-proxy/internal/logger"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment, then let flags override it
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fs := pflag.NewFlagSet("proxy", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <port number>\n", os.Args[0])
		fs.PrintDefaults()
	}
	config.BindServerFlags(fs, cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	cfg.ListenPort = fs.Arg(0)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	logger.Info("Starting xrelay-proxy...",
		"discovery", cfg.DiscoveryMode,
		"dial", cfg.DialMode,
		"fetch_mode", cfg.FetchMode,
		"path_fallback", cfg.PathFallback)

	// Create origin resolver
	resolver, err := factory.NewResolverFactory(cfg).Create(ctx)
	if err != nil {
		logger.Fatal("Failed to create origin resolver", "error", err)
	}

	// Create egress dialer
	dialer, err := factory.NewDialerFactory(cfg).Create()
	if err != nil {
		logger.Fatal("Failed to create dialer", "error", err)
	}

	connectionHandler := factory.NewProxyFactory(cfg).Create(resolver, dialer)

	// Start TCP listener
	listener, err := net.Listen("tcp", ":"+cfg.ListenPort)
	if err != nil {
		logger.Fatal("Failed to start listener", "port", cfg.ListenPort, "error", err)
	}
	logger.Info("Server started", "port", cfg.ListenPort)

	server := &core.Server{
		Listener:          listener,
		ConnectionHandler: connectionHandler,
	}

	var queue api.QueueSource
	if cfg.MaxConnections > 0 {
		server.Limiter = core.NewLimiter(cfg.MaxConnections, cfg.MaxPending)
		queue = server.Limiter
		logger.Info("Connection limit enabled", "max", cfg.MaxConnections, "max_pending", cfg.MaxPending)
	} else {
		logger.Warn("No connection limit configured, every client gets its own worker")
	}

	// Start health server (optional)
	var healthServer *api.HealthServer
	if cfg.HealthServerPort != "" {
		healthServer = api.NewHealthServer(":"+cfg.HealthServerPort, server, queue)
		healthServer.Start()
		healthServer.SetReady(true)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		if healthServer != nil {
			healthServer.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Stop(shutdownCtx); err != nil {
				logger.Warn("Health server shutdown failed", "error", err)
			}
		}
		listener.Close()
	}()

	logger.Info("Proxy is ready to accept connections")

	// Start serving (blocking)
	if err := server.Serve(); err != nil {
		if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
			return
		}
		logger.Fatal("Server error", "error", err)
	}
}
