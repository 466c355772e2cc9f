package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/mathroom/internal/config"
	"github.com/iudanet/mathroom/internal/console"
	"github.com/iudanet/mathroom/internal/session"
	"github.com/iudanet/mathroom/internal/transport"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.LoadPeer(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printUsage()
		os.Exit(2)
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Peer, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signalURLs := cfg.SignalURLs
	if cfg.Discover {
		found, err := transport.DiscoverSignaling(ctx, cfg.DiscoverTimeout)
		if err != nil {
			logger.Warn("Signaling discovery failed", "error", err)
		}
		logger.Info("Signaling servers discovered", "count", len(found))
		signalURLs = append(found, signalURLs...)
	}
	if len(signalURLs) == 0 {
		return fmt.Errorf("no signaling servers found")
	}

	tr := transport.NewWebSocket(transport.Config{
		SignalURLs:    signalURLs,
		ListenAddr:    cfg.ListenAddr,
		AdvertiseAddr: cfg.AdvertiseAddr,
	}, logger)

	roomID := cfg.Room()
	s, err := session.New(roomID, tr, session.Config{Label: cfg.Label}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("Failed to close session", "error", err)
		}
	}()

	if err := s.Connect(ctx); err != nil {
		return err
	}

	out := console.NewStdio()
	out.Printf("Joined room %s as %s\n", roomID, s.LocalPresence().Label)
	if link, err := s.Invite(cfg.InviteBase); err == nil {
		out.Printf("Invite: %s\n", link)
	}
	out.Println("Type 'help' for commands.")

	views, cancel := s.Subscribe()
	defer cancel()
	go console.Watch(ctx, out, views)

	// Чтение stdin не прерывается сигналом: выходим, не дожидаясь консоли
	done := make(chan error, 1)
	go func() {
		done <- console.New(out, s, cfg.InviteBase).Run(ctx)
	}()

	select {
	case <-ctx.Done():
		out.Println()
		return nil
	case err := <-done:
		return err
	}
}

func printUsage() {
	fmt.Println("Mathroom Console Peer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mathroom-peer [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -join ID|LINK          Room id or invite link (default: new room)")
	fmt.Println("  -label NAME            Display name (default: random user id)")
	fmt.Println("  -signal URLS           Comma-separated signaling URLs (default: ws://localhost:8090/ws)")
	fmt.Println("  -discover              Find signaling servers via mDNS")
	fmt.Println("  -discover-timeout DUR  mDNS discovery time (default: 3s)")
	fmt.Println("  -listen ADDR           Listen address for peer links (default: 127.0.0.1:0)")
	fmt.Println("  -advertise ADDR        Address announced to peers (default: listen address)")
	fmt.Println("  -invite-base URL       Page location for invite links")
	fmt.Println("  -log-level LEVEL       debug, info, warn, error (default: warn)")
	fmt.Println("  -version               Show version information")
	fmt.Println()
	fmt.Println("Environment variables override flags:")
	fmt.Println("  MATHROOM_JOIN, MATHROOM_LABEL, MATHROOM_SIGNAL_URLS, MATHROOM_DISCOVER,")
	fmt.Println("  MATHROOM_DISCOVER_TIMEOUT, MATHROOM_LISTEN_ADDR, MATHROOM_ADVERTISE_ADDR,")
	fmt.Println("  MATHROOM_INVITE_BASE, MATHROOM_LOG_LEVEL")
}

func printVersion() {
	fmt.Printf("Mathroom Console Peer\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
