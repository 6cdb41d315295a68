package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.AuthFailed(ReasonCredentials)
		m.MessageAppended(KindChat)
		m.AIRequest(true)
		m.MembersSwept(3)
		m.SetRooms(1)
	})
}

func TestCollectorsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))

	m.AuthFailed(ReasonCredentials)
	m.AuthFailed(ReasonCredentials)
	m.AuthFailed(ReasonSession)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.authFailures.WithLabelValues(ReasonCredentials)))

	m.AIRequest(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiRequests.WithLabelValues("error")))

	m.MembersSwept(0)
	m.MembersSwept(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweepRemoved))

	m.SetRooms(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rooms))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
