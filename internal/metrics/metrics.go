// Package metrics defines the prometheus surface exposed on
// METRICS_PORT. Metric names and label sets are part of the external
// contract with the observability collaborator and must not drift
// without a coordinated change there.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "authdnsd_queries_total", Help: "Total UDP queries received, labelled by QTYPE."},
		[]string{"qtype"},
	)

	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "authdnsd_responses_total", Help: "Total UDP responses sent, labelled by RCODE."},
		[]string{"rcode"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authdnsd_query_duration_seconds",
			Help:    "UDP query handling latency, labelled by QTYPE.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"qtype"},
	)

	NXDomainTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "authdnsd_nxdomain_total", Help: "Total NXDOMAIN responses."},
	)

	ServFailTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "authdnsd_servfail_total", Help: "Total SERVFAIL responses."},
	)

	PacketErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "authdnsd_packet_errors_total", Help: "Total datagrams that failed to parse."},
	)

	ActiveRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "authdnsd_active_records", Help: "Current number of records held by the store."},
	)

	UptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "authdnsd_uptime_seconds", Help: "Seconds since process start."},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "authdnsd_api_requests_total", Help: "Total control API requests, labelled by endpoint and outcome."},
		[]string{"endpoint", "outcome"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authdnsd_api_request_duration_seconds",
			Help:    "Control API request latency, labelled by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		ResponsesTotal,
		QueryDuration,
		NXDomainTotal,
		ServFailTotal,
		PacketErrorsTotal,
		ActiveRecords,
		UptimeSeconds,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// StartGaugeRefresher refreshes the uptime and active-records gauges
// once a second until done is closed. It is the optional background
// observer that refreshes gauges from the store on a timer; the server
// runs it alongside its three long-running tasks (UDP receive loop,
// control API, metrics endpoint).
func StartGaugeRefresher(done <-chan struct{}, startedAt time.Time, recordCount func() int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			UptimeSeconds.Set(now.Sub(startedAt).Seconds())
			ActiveRecords.Set(float64(recordCount()))
		}
	}
}
