// Package prometheus implements metrics.SessionMetrics on top of
// github.com/prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/psx-connect/connector/pkg/metrics"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	sequence        *prometheus.GaugeVec
	heartbeats      *prometheus.CounterVec
	testRequests    *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	frameErrors     *prometheus.CounterVec
	messages        *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	sessionState    *prometheus.GaugeVec
}

// NewSessionMetrics creates a new Prometheus-backed SessionMetrics instance.
//
// Returns a nil *sessionMetrics if metrics are not enabled (InitRegistry
// not called); every recorder method is a no-op on that nil receiver, so
// callers can pass the result straight into the session machine.
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return (*sessionMetrics)(nil)
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		sequence: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "psx_connect_sequence_number",
				Help: "Current outbound sequence number per stream",
			},
			[]string{"stream"},
		),
		heartbeats: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "psx_connect_heartbeats_total",
				Help: "Total number of heartbeats by direction",
			},
			[]string{"direction"}, // "sent", "received"
		),
		testRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "psx_connect_test_requests_total",
				Help: "Total number of test requests by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		reconnects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "psx_connect_reconnects_total",
				Help: "Total number of reconnects by reason",
			},
			[]string{"reason"},
		),
		frameErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "psx_connect_frame_errors_total",
				Help: "Total number of malformed frame errors by cause",
			},
			[]string{"cause"},
		),
		messages: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "psx_connect_messages_total",
				Help: "Total number of FIX messages by MsgType and direction",
			},
			[]string{"msg_type", "direction"},
		),
		messageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "psx_connect_message_duration_milliseconds",
				Help: "Duration of message handling in milliseconds",
				Buckets: []float64{
					0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000,
				},
			},
			[]string{"msg_type"},
		),
		sessionState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "psx_connect_session_state",
				Help: "Current session state, 1 for the active state and 0 for all others",
			},
			[]string{"state"},
		),
	}
}

func (m *sessionMetrics) RecordSequence(stream string, seq int) {
	if m == nil {
		return
	}
	m.sequence.WithLabelValues(stream).Set(float64(seq))
}

func (m *sessionMetrics) RecordHeartbeat(direction string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(direction).Inc()
}

func (m *sessionMetrics) RecordTestRequest(direction, outcome string) {
	if m == nil {
		return
	}
	m.testRequests.WithLabelValues(direction, outcome).Inc()
}

func (m *sessionMetrics) RecordReconnect(reason string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(reason).Inc()
}

func (m *sessionMetrics) RecordFrameError(cause string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(cause).Inc()
}

func (m *sessionMetrics) RecordMessage(msgType, direction string, duration time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType, direction).Inc()
	m.messageDuration.WithLabelValues(msgType).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *sessionMetrics) SetSessionState(state string) {
	if m == nil {
		return
	}
	// Reset every known state back to 0, then set the active one to 1.
	for _, s := range []string{
		"Disconnected", "Connecting", "Connected", "LoggedIn",
		"LoggingOut", "SequenceReset", "Error",
	} {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.sessionState.WithLabelValues(s).Set(value)
	}
}
