package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes outcome counters for the authentication core. All methods
// are nil-safe so services can run without instrumentation attached.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	lockouts      *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// NewMetrics constructs and registers the auth outcome collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		loginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts partitioned by result.",
		}, []string{"result"}),
		lockouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "lockouts_total",
			Help:      "Total number of rate-limit rejections partitioned by scope.",
		}, []string{"scope"}),
		registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "registrations_total",
			Help:      "Total number of completed registrations partitioned by path.",
		}, []string{"path"}),
	}
}

// ObserveLogin records a login outcome.
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

// ObserveLockout records a rate-limit rejection.
func (m *Metrics) ObserveLockout(scope string) {
	if m == nil {
		return
	}
	m.lockouts.WithLabelValues(scope).Inc()
}

// ObserveRegistration records a completed registration.
func (m *Metrics) ObserveRegistration(path string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(path).Inc()
}
