package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/spxiwh/pegasus/internal/statusapi"
	"github.com/spxiwh/pegasus/monitoring"
)

// runMonitor starts the relay standalone with the status API and runs
// it until a shutdown signal or a relay failure.
func runMonitor(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.LogFile)
	defer cleanupLogger()

	reg := prometheus.NewRegistry()

	relay, err := monitoring.Start(monitoring.Options{
		Interval:          cfg.Interval,
		AggregationFactor: cfg.AggregationFactor,
		Metrics:           reg,
	})
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	if cfg.APIEnabled {
		apiServer := statusapi.NewServer(cfg.APIAddr, relay, reg)
		if err := apiServer.Start(); err != nil {
			_ = relay.Stop()
			return fmt.Errorf("failed to start status API: %w", err)
		}
		defer apiServer.Stop()
		log.Printf("monitor: status API on %s", cfg.APIAddr)
	}

	log.Printf("monitor: endpoint %s:%d (interval %s, aggregation factor %d)",
		relay.Host(), relay.Port(), cfg.Interval, cfg.AggregationFactor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-sigCh:
			log.Printf("monitor: shutdown signal received")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	// A loop-fatal listener error takes the relay down on its own;
	// treat it like a shutdown trigger so the daemon exits.
	g.Go(func() error {
		select {
		case <-relay.Done():
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("monitor: errgroup exited with error: %v", err)
	}

	if err := relay.Stop(); err != nil {
		return fmt.Errorf("shutting relay down: %w", err)
	}
	return nil
}

func configureRuntimeLogger(path string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if path == "" {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
