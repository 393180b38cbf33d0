package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/errors"
)

func TestDcernoMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewDcernoMetrics(registry)
	require.NoError(t, err)

	m.RecordConnect(nil)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0)

	m.RecordConnect(errors.NewStd("refused"))
	m.RecordReconnect()
	m.ObserveRoundTrip("gunits", 0.02)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Connects.WithLabelValues(StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connects.WithLabelValues(StatusError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.Connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Reconnects), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.RoundTrip))

	_, err = NewDcernoMetrics(registry)
	require.Error(t, err, "duplicate registration")
}

func TestNilReceiversAreNoOps(t *testing.T) {
	t.Parallel()

	var d *DcernoMetrics
	var p *PTZMetrics
	var tr *TrackingMetrics
	var mq *MQTTMetrics
	var n *NotificationMetrics
	var e *ErrorMetrics

	assert.NotPanics(t, func() {
		d.RecordConnect(nil)
		d.RecordReconnect()
		d.RecordDisconnect()
		d.ObserveRoundTrip("gunits", 1)
		p.RecordRequest("home", nil, 1)
		tr.RecordTick(TickOK, 1)
		tr.RecordTransition("10.0.0.5", "poscall")
		tr.RecordCallError("10.0.0.5")
		tr.RecordRestart()
		mq.UpdateConnectionStatus(true)
		mq.IncrementErrors()
		mq.StartPublishTimer().ObserveDuration()
		n.RecordDelivery("outage", nil)
		e.RecordError("client", "dcerno")
	})
}

func TestTrackingAndPTZMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	tr, err := NewTrackingMetrics(registry)
	require.NoError(t, err)
	p, err := NewPTZMetrics(registry)
	require.NoError(t, err)

	tr.RecordTick(TickOK, 0.1)
	tr.RecordTick(TickError, 0.2)
	tr.RecordTransition("10.0.0.5", "poscall")
	tr.RecordTransition("10.0.0.5", "poscall")
	tr.RecordCallError("10.0.0.6")

	p.RecordRequest("poscall", nil, 0.05)
	p.RecordRequest("poscall", errors.NewStd("timeout"), 3)

	assert.InDelta(t, 2, testutil.ToFloat64(tr.Transitions.WithLabelValues("10.0.0.5", "poscall")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(tr.CallErrors.WithLabelValues("10.0.0.6")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(tr.Ticks.WithLabelValues(TickError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Requests.WithLabelValues("poscall", StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Requests.WithLabelValues("poscall", StatusSuccess)), 0)
}
