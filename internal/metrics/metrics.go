package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roomchat"

// Metrics holds the chat server's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	activeConnections prometheus.Gauge
	authFailures      *prometheus.CounterVec
	messages          *prometheus.CounterVec
	aiRequests        *prometheus.CounterVec
	sweepRemoved      prometheus.Counter
	rooms             prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open client connections.",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Failed authentication attempts by reason.",
		}, []string{"reason"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Lines appended to room history by kind.",
		}, []string{"kind"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI reply generations by result.",
		}, []string{"result"}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_members_total",
			Help:      "Disconnected members removed from rooms.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of rooms in the registry.",
		}),
	}

	reg.MustRegister(
		m.activeConnections,
		m.authFailures,
		m.messages,
		m.aiRequests,
		m.sweepRemoved,
		m.rooms,
	)
	return m
}

// Auth failure reasons
const (
	ReasonFormat      = "format"
	ReasonCredentials = "credentials"
	ReasonSession     = "session"
	ReasonNotLoggedIn = "not_logged_in"
)

// Message kinds
const (
	KindChat   = "chat"
	KindNotice = "notice"
	KindBot    = "bot"
)

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.activeConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.activeConnections.Dec()
	}
}

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.authFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) MessageAppended(kind string) {
	if m != nil {
		m.messages.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) AIRequest(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.aiRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) MembersSwept(n int) {
	if m != nil && n > 0 {
		m.sweepRemoved.Add(float64(n))
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.rooms.Set(float64(n))
	}
}
