package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"probeview/internal/command"
	"probeview/internal/config"
	"probeview/internal/dashboard/api"
	"probeview/internal/dashboard/stream"
	"probeview/internal/gateway"
	"probeview/internal/live"
	"probeview/internal/logger"
	"probeview/internal/types"
	"probeview/internal/version"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := gateway.NewHTTPClient(&cfg.Gateway, log)

	hub := stream.NewHub(log)
	go hub.Run()

	poller := live.NewPoller(gw, cfg.Live.PollInterval, cfg.Live.LookbackSeconds, log,
		func(snap types.LiveSnapshot) {
			hub.Broadcast(stream.EventLiveSnapshot, snap)
		})

	dispatcher := command.NewDispatcher(gw, cfg.Dispatch.PollInterval, cfg.Dispatch.MaxAttempts, log,
		func(env types.CommandEnvelope) {
			hub.Broadcast(stream.EventCommandState, env)
		})

	router := api.NewRouter(ctx, cfg, poller, dispatcher, gw, hub, log)

	server := &http.Server{
		Addr:    cfg.Dashboard.Listen,
		Handler: router.Handler(),
	}

	go func() {
		log.Info("Starting dashboard",
			zap.String("address", cfg.Dashboard.Listen),
			zap.String("gateway", cfg.Gateway.Address))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal", zap.String("signal", sig.String()))

	log.Info("Starting graceful shutdown")
	poller.Stop()
	dispatcher.Close()
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	log.Info("Dashboard stopped")
}
