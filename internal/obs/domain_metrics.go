package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PaymentSubmitTotal counts card submissions by gateway and result.
	PaymentSubmitTotal *prometheus.CounterVec
	// PaymentCallbackTotal counts processed gateway callbacks by result.
	PaymentCallbackTotal *prometheus.CounterVec
	// GatewayRequestDuration records outbound gateway latency in milliseconds.
	GatewayRequestDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PaymentSubmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_submit_total",
			Help:      "Count of card submissions to the gateway by outcome.",
		}, []string{"gateway", "result"})
		PaymentCallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_callback_total",
			Help:      "Count of processed gateway callbacks by outcome.",
		}, []string{"gateway", "result"})
		GatewayRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_ms",
			Help:      "Latency of outbound gateway requests in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"gateway", "operation", "status"})

		mustRegisterCollector(reg, PaymentSubmitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentSubmitTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentCallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentCallbackTotal = v
			}
		})
		mustRegisterCollector(reg, GatewayRequestDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				GatewayRequestDuration = v
			}
		})
	})
}

// ObserveSubmit increments the submit counter when metrics are registered.
func ObserveSubmit(gateway, result string) {
	if PaymentSubmitTotal != nil {
		PaymentSubmitTotal.WithLabelValues(gateway, result).Inc()
	}
}

// ObserveCallback increments the callback counter when metrics are registered.
func ObserveCallback(gateway, result string) {
	if PaymentCallbackTotal != nil {
		PaymentCallbackTotal.WithLabelValues(gateway, result).Inc()
	}
}

// GatewayObserver returns a latency hook for outbound calls to gateway. The
// caller's target label is recorded as the operation.
func GatewayObserver(gateway string) func(target, status string, d time.Duration) {
	return func(operation, status string, d time.Duration) {
		if GatewayRequestDuration != nil {
			GatewayRequestDuration.WithLabelValues(gateway, operation, status).Observe(DurationMillis(d))
		}
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
}
