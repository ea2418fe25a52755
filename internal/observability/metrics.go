package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	transitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Name:      "status_transitions_total",
			Help:      "Ticket status transitions by destination status and result",
		},
		[]string{"to_status", "result"},
	)
	notificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fixflow",
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and result",
		},
		[]string{"kind", "result"},
	)
	allocationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fixflow",
			Name:      "ticket_number_allocation_seconds",
			Help:      "Latency of ticket number allocation",
			Buckets:   prometheus.DefBuckets,
		},
	)
	metricsRegistered bool
)

// Registry is the dedicated registry exposed on the metrics port.
var Registry *prometheus.Registry

// RegisterCollectors registers the domain collectors on reg, or on the
// default global registry when reg is nil. Safe to call more than once.
func RegisterCollectors(reg *prometheus.Registry) {
	if metricsRegistered {
		return
	}
	if reg != nil {
		reg.MustRegister(transitionCounter, notificationCounter, allocationLatency)
	} else {
		prometheus.MustRegister(transitionCounter, notificationCounter, allocationLatency)
	}
	metricsRegistered = true
}

// ObserveTransition records one attempted status transition.
func ObserveTransition(toStatus, result string) {
	transitionCounter.WithLabelValues(toStatus, result).Inc()
}

// ObserveNotification records one delivery attempt.
func ObserveNotification(kind, result string) {
	notificationCounter.WithLabelValues(kind, result).Inc()
}

// ObserveAllocation records allocator latency in seconds.
func ObserveAllocation(seconds float64) { allocationLatency.Observe(seconds) }

// InitMetrics launches a /metrics HTTP endpoint if addr is not empty, with
// go/process collectors plus the domain collectors on a dedicated registry.
func InitMetrics(service, addr string, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	Registry = prometheus.NewRegistry()
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	RegisterCollectors(Registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}
	}()
	if logger != nil {
		logger.Info("metrics server listening", zap.String("addr", addr), zap.String("service", service))
	}
	return srv
}
