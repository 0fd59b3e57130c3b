package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal *prometheus.CounterVec
	liveSubscriptions *prometheus.GaugeVec
	domainEventsTotal *prometheus.CounterVec
	registerOnce      sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chousei",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the poll API.",
		}, []string{"method", "path", "status"})

		liveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chousei",
			Name:      "live_subscriptions",
			Help:      "Open live poll views (one synchronizer each).",
		}, []string{"transport"})

		domainEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chousei",
			Name:      "events_total",
			Help:      "Domain events processed by the activity worker.",
		}, []string{"type"})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func SubscriptionOpened(transport string) {
	if liveSubscriptions == nil {
		return
	}
	liveSubscriptions.WithLabelValues(transport).Inc()
}

func SubscriptionClosed(transport string) {
	if liveSubscriptions == nil {
		return
	}
	liveSubscriptions.WithLabelValues(transport).Dec()
}

func IncEvent(eventType string) {
	if domainEventsTotal == nil {
		return
	}
	domainEventsTotal.WithLabelValues(eventType).Inc()
}
