package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// Metrics counts login attempts per provider.
type Metrics struct {
	authorize *prometheus.CounterVec
	callback  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authorize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_authorize_total",
			Help: "Authorization redirects sent to an identity provider",
		}, []string{"provider"}),
		callback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "social_login_callback_total",
			Help: "Provider callbacks handled, by result",
		}, []string{"provider", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.authorize, m.callback)
	}
	return m
}

func (m *Metrics) Authorize(provider string) {
	if m == nil {
		return
	}
	m.authorize.WithLabelValues(provider).Inc()
}

func (m *Metrics) Callback(provider, result string) {
	if m == nil {
		return
	}
	m.callback.WithLabelValues(provider, result).Inc()
}
