// Package server wires the UDP listener, the HTTP control API, and the
// metrics endpoint into one process with a shared Record Store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dnsscience/authdnsd/internal/api"
	"github.com/dnsscience/authdnsd/internal/metrics"
	"github.com/dnsscience/authdnsd/internal/store"
	"github.com/dnsscience/authdnsd/internal/udpserver"
	"github.com/dnsscience/authdnsd/internal/worker"
)

// Config holds the settings needed to assemble a Server.
type Config struct {
	DNSBindAddr string
	APIBindAddr string
	MetricsAddr string
	BackingFile string
	InstanceID  string
}

// Server is the top-level process: three long-running tasks (UDP
// receive loop, HTTP control API, metrics endpoint) sharing one Record
// Store handle, plus the optional gauge-refresh observer.
type Server struct {
	cfg   Config
	store *store.Store
	log   *zap.Logger

	udp         *udpserver.Server
	apiHTTP     *http.Server
	metricsHTTP *http.Server

	cancel    context.CancelFunc
	gaugeDone chan struct{}
	startedAt time.Time
}

// New constructs a Server. The backing file is loaded into the store
// before this returns, so a startup failure to read it is reported to
// the caller immediately rather than after listeners are up.
func New(cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	st := store.New(log)
	if err := st.LoadFromFile(cfg.BackingFile); err != nil {
		return nil, fmt.Errorf("loading backing file: %w", err)
	}

	udpSrv := udpserver.New(cfg.DNSBindAddr, st, log, worker.Config{}, cfg.InstanceID)

	apiSrv := api.New(st, cfg.BackingFile, cfg.InstanceID, log)
	apiHTTP := &http.Server{
		Addr:    cfg.APIBindAddr,
		Handler: apiSrv.Handler(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsHTTP := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	return &Server{
		cfg:         cfg,
		store:       st,
		log:         log,
		udp:         udpSrv,
		apiHTTP:     apiHTTP,
		metricsHTTP: metricsHTTP,
		gaugeDone:   make(chan struct{}),
		startedAt:   time.Now(),
	}, nil
}

// Start launches the UDP loop, the control API, the metrics endpoint,
// and the gauge-refresh observer, returning immediately; each listener
// logs its own startup failures since none may abort the others.
func (s *Server) Start(ctx context.Context) {
	udpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		if err := s.udp.ListenAndServe(udpCtx); err != nil {
			s.log.Error("udp server exited", zap.Error(err))
		}
	}()

	go func() {
		s.log.Info("control api listening", zap.String("addr", s.cfg.APIBindAddr))
		if err := s.apiHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("control api exited", zap.Error(err))
		}
	}()

	go func() {
		s.log.Info("metrics listening", zap.String("addr", s.cfg.MetricsAddr))
		if err := s.metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server exited", zap.Error(err))
		}
	}()

	go metrics.StartGaugeRefresher(s.gaugeDone, s.startedAt, s.store.Len)
}

// Stop drains in-flight requests for gracePeriod before returning. It
// cancels the UDP server's context first so its receive loop exits on
// its own rather than racing a direct socket close against a read.
func (s *Server) Stop(gracePeriod time.Duration) error {
	close(s.gaugeDone)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	var firstErr error
	if err := s.apiHTTP.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.metricsHTTP.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.udp.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
