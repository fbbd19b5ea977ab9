// Command authdnsd runs the authoritative DNS server: the UDP wire
// protocol listener, the HTTP control API, and the metrics endpoint,
// sharing one record store.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dnsscience/authdnsd/internal/config"
	"github.com/dnsscience/authdnsd/internal/logging"
	"github.com/dnsscience/authdnsd/internal/server"
)

const shutdownGracePeriod = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "constructing logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	log.Info("starting authdnsd",
		zap.String("instance_id", cfg.InstanceID),
		zap.String("dns_bind_addr", cfg.DNSBindAddr),
		zap.String("api_bind_addr", cfg.APIBindAddr),
		zap.String("metrics_port", cfg.MetricsPort),
		zap.String("backing_file", cfg.BackingFile),
	)

	srv, err := server.New(server.Config{
		DNSBindAddr: cfg.DNSBindAddr,
		APIBindAddr: cfg.APIBindAddr,
		MetricsAddr: net.JoinHostPort("", cfg.MetricsPort),
		BackingFile: cfg.BackingFile,
		InstanceID:  cfg.InstanceID,
	}, log)
	if err != nil {
		log.Error("failed to construct server", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining in-flight requests")
	if err := srv.Stop(shutdownGracePeriod); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return 1
	}

	log.Info("authdnsd stopped cleanly")
	return 0
}
