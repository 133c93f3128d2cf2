// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and histograms for conversation turns and calendar traffic.
type Metrics struct {
	turnsTotal      *prometheus.CounterVec
	intentFallbacks prometheus.Counter
	calendarLatency *prometheus.HistogramVec
	bookingsTotal   *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalbot",
			Name:      "turns_total",
			Help:      "Conversation turns handled, by outcome",
		}, []string{"outcome"}),
		intentFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dentalbot",
			Name:      "intent_fallback_total",
			Help:      "Turns classified by the keyword fallback after the primary classifier failed",
		}),
		calendarLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dentalbot",
			Name:      "calendar_call_seconds",
			Help:      "Latency of calendar backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dentalbot",
			Name:      "bookings_total",
			Help:      "Calendar mutations by action and status",
		}, []string{"action", "status"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dentalbot",
			Name:      "sessions_active",
			Help:      "Sessions currently held by the in-memory store",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.intentFallbacks, m.calendarLatency, m.bookingsTotal, m.sessionsActive)
	return m
}

func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IntentFallback() {
	if m == nil {
		return
	}
	m.intentFallbacks.Inc()
}

// ObserveCalendarCall records one backend call started at start.
func (m *Metrics) ObserveCalendarCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.calendarLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveBooking(action, status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(action, status).Inc()
}

func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}
