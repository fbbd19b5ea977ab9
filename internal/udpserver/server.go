// Package udpserver implements the UDP request pipeline: receive, parse,
// resolve, build, send, instrument.
package udpserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/dnsscience/authdnsd/internal/metrics"
	"github.com/dnsscience/authdnsd/internal/packet"
	"github.com/dnsscience/authdnsd/internal/pool"
	"github.com/dnsscience/authdnsd/internal/store"
	"github.com/dnsscience/authdnsd/internal/worker"
)

// Server is the UDP DNS listener. A single socket serves all datagrams;
// per-datagram work is dispatched onto a bounded worker pool so a burst
// of traffic cannot spawn an unbounded number of goroutines.
type Server struct {
	addr       string
	store      *store.Store
	log        *zap.Logger
	pool       *worker.Pool
	instanceID string

	conn *net.UDPConn
}

// New creates a UDP server bound to addr, backed by st. instanceID is
// attached to every observation event so multi-instance deployments can
// be correlated in logs and metrics.
func New(addr string, st *store.Store, log *zap.Logger, workers worker.Config, instanceID string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:       addr,
		store:      st,
		log:        log,
		pool:       worker.NewPool(workers),
		instanceID: instanceID,
	}
}

// ListenAndServe binds the UDP socket and runs the receive loop until
// ctx is cancelled. It blocks until the loop exits.
func (s *Server) ListenAndServe(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	s.log.Info("udp server listening", zap.String("addr", s.addr))
	return s.serveOn(ctx, conn)
}

// serveOn runs the receive loop against an already-bound connection. It
// is split out from ListenAndServe so tests can discover an ephemeral
// port before traffic starts.
func (s *Server) serveOn(ctx context.Context, conn *net.UDPConn) error {
	for {
		buf := pool.GetDatagramBuffer()
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			pool.PutDatagramBuffer(buf)
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Error("udp read error", zap.Error(err))
			continue
		}

		datagram := buf[:n]
		if err := s.pool.Dispatch(worker.JobFunc(func(jobCtx context.Context) {
			defer pool.PutDatagramBuffer(buf)
			s.handle(datagram, clientAddr)
		})); err != nil {
			pool.PutDatagramBuffer(buf)
			s.log.Warn("dropping datagram, worker pool saturated", zap.Error(err))
		}
	}
}

// Close stops accepting datagrams and drains in-flight handlers.
func (s *Server) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return s.pool.Close()
}

func (s *Server) handle(datagram []byte, clientAddr *net.UDPAddr) {
	start := time.Now()

	q, err := packet.NewParser(datagram).Parse()
	if err != nil {
		metrics.PacketErrorsTotal.Inc()
		s.log.Error("packet parse error",
			zap.String("instance_id", s.instanceID),
			zap.Stringer("client", clientAddr),
			zap.Error(err),
			zap.String("hex", packet.DebugHex(datagram, 16)),
		)

		if id, ok := packet.ExtractID(datagram); ok {
			s.send(packet.BuildFormErr(id), clientAddr)
		}
		return
	}

	qtypeLabel := packet.TypeText(q.Question.Type)
	metrics.QueriesTotal.WithLabelValues(qtypeLabel).Inc()

	var (
		answer *packet.Answer
		rcode  uint8
	)
	if rec, ok := s.store.Lookup(q.Question.Name); ok {
		if a, ok := rec.ToAnswer(q.Question.Type); ok {
			answer, rcode = a, packet.RcodeNoError
		} else {
			rcode = packet.RcodeNXDomain
		}
	} else {
		rcode = packet.RcodeNXDomain
	}

	response := packet.BuildResponse(q, answer, rcode)
	s.send(response, clientAddr)

	elapsed := time.Since(start)
	metrics.ResponsesTotal.WithLabelValues(packet.RcodeText(rcode)).Inc()
	metrics.QueryDuration.WithLabelValues(qtypeLabel).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("instance_id", s.instanceID),
		zap.Stringer("client_ip", clientAddr),
		zap.Uint16("query_id", q.Header.ID),
		zap.String("qtype", qtypeLabel),
		zap.String("qname", q.Question.Name),
		zap.Uint8("rcode", rcode),
		zap.String("rcode_text", packet.RcodeText(rcode)),
		zap.Float64("duration_ms", float64(elapsed)/float64(time.Millisecond)),
		zap.Int("response_bytes", len(response)),
	}

	switch rcode {
	case packet.RcodeNoError:
		s.log.Info("query answered", fields...)
	case packet.RcodeNXDomain:
		metrics.NXDomainTotal.Inc()
		s.log.Debug("query nxdomain", fields...)
	case packet.RcodeServFail:
		metrics.ServFailTotal.Inc()
		s.log.Error("query servfail", fields...)
	}
}

func (s *Server) send(b []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		s.log.Error("udp send error", zap.Stringer("client", addr), zap.Error(err))
	}
}
