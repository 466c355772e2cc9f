package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/mathroom/internal/config"
	"github.com/iudanet/mathroom/internal/server/handlers"
	"github.com/iudanet/mathroom/internal/server/middleware"
	"github.com/iudanet/mathroom/internal/signal"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.LoadSignal(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := run(cfg, logger); err != nil {
		logger.Error("Signaling server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Signal, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bus signal.Bus = signal.NewMemoryBus()
	if cfg.RedisAddr != "" {
		redisBus, err := signal.NewRedisBus(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return err
		}
		bus = redisBus
		logger.Info("Using redis bus", "addr", cfg.RedisAddr)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("Failed to close bus", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub, err := signal.NewHub(ctx, bus, signal.NewMetrics(registry), logger)
	if err != nil {
		return err
	}
	defer hub.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute, logger)
	defer limiter.Stop()

	router := signal.NewRouter(signal.RouterConfig{
		Hub:     hub,
		Health:  handlers.NewHealthHandler(hub, Version, logger).Health,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Limiter: limiter,
		Logger:  logger,
	})

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	logger.Info("Signaling server started", "addr", listener.Addr().String(), "version", Version)

	if cfg.MDNS {
		port := listener.Addr().(*net.TCPAddr).Port
		stop, err := signal.Advertise(port, Version)
		if err != nil {
			logger.Warn("mDNS advertisement disabled", "error", err)
		} else {
			defer stop()
			logger.Info("Advertising via mDNS", "port", strconv.Itoa(port))
		}
	}

	exit := make(chan os.Signal, 1)
	ossignal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	defer ossignal.Stop(exit)

	select {
	case sig := <-exit:
		logger.Info("Signal caught", "sig", sig.String())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Websocket-соединения Shutdown не закрывает: их закрывает hub.Close
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", "error", err)
	}
	logger.Info("Signaling server stopped")
	return nil
}

func printUsage() {
	fmt.Println("Mathroom Signaling Server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mathroom-signal [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -addr ADDR          HTTP listen address (default: :8090)")
	fmt.Println("  -redis ADDR         Redis address for multi-instance fan-out (default: in-memory)")
	fmt.Println("  -rate-limit N       New websocket connections per minute per IP (default: 60)")
	fmt.Println("  -mdns               Advertise the server via mDNS (default: true)")
	fmt.Println("  -log-level LEVEL    debug, info, warn, error (default: info)")
	fmt.Println("  -version            Show version information")
	fmt.Println()
	fmt.Println("Environment variables override flags:")
	fmt.Println("  MATHROOM_SIGNAL_ADDR, MATHROOM_REDIS_ADDR, MATHROOM_RATE_LIMIT,")
	fmt.Println("  MATHROOM_MDNS, MATHROOM_LOG_LEVEL")
}

func printVersion() {
	fmt.Printf("Mathroom Signaling Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
