// Package metrics holds the Prometheus instrumentation for the session
// lifecycle. Pass the bundle to components that need to record metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics bundles the session lifecycle metrics.
type Metrics struct {
	LoginsTotal           *prometheus.CounterVec
	RegistrationsTotal    *prometheus.CounterVec
	RefreshesTotal        *prometheus.CounterVec
	AuthenticatedSessions prometheus.Gauge
	RequestsTotal         *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mycoding",
				Subsystem: "session",
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
		RegistrationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mycoding",
				Subsystem: "session",
				Name:      "registrations_total",
				Help:      "Registration attempts by result",
			},
			[]string{"result"},
		),
		RefreshesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mycoding",
				Subsystem: "session",
				Name:      "token_refreshes_total",
				Help:      "Background token refreshes by result",
			},
			[]string{"result"},
		),
		AuthenticatedSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "mycoding",
				Subsystem: "session",
				Name:      "authenticated_sessions",
				Help:      "Whether the session is currently authenticated (0 or 1)",
			},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mycoding",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
	}
}
