// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the server's collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	connections  prometheus.Gauge
	identities   prometheus.Gauge
	rpcRequests  *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
	messagesSent prometheus.Counter
	pushEvents   *prometheus.CounterVec
}

// NewRecorder registers the collectors with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		gatherer: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uchat_connections",
			Help: "Number of open websocket connections",
		}),
		identities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uchat_online_identities",
			Help: "Number of identities with at least one bound connection",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uchat_rpc_requests_total",
			Help: "Remote operations handled, by operation and result code",
		}, []string{"op", "result"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uchat_rpc_duration_seconds",
			Help:    "Latency of remote operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uchat_messages_sent_total",
			Help: "Secure messages persisted",
		}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uchat_push_events_total",
			Help: "Push events by name and outcome (delivered, offline, dropped)",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(
		r.connections,
		r.identities,
		r.rpcRequests,
		r.rpcDuration,
		r.messagesSent,
		r.pushEvents,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) SetConnections(n int) {
	if r == nil {
		return
	}
	r.connections.Set(float64(n))
}

func (r *Recorder) SetOnlineIdentities(n int) {
	if r == nil {
		return
	}
	r.identities.Set(float64(n))
}

func (r *Recorder) ObserveRPC(op, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.rpcRequests.WithLabelValues(op, result).Inc()
	r.rpcDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) MessageSent() {
	if r == nil {
		return
	}
	r.messagesSent.Inc()
}

func (r *Recorder) PushEvent(event, result string) {
	if r == nil {
		return
	}
	r.pushEvents.WithLabelValues(event, result).Inc()
}
