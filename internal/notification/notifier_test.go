package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
)

type sent struct {
	title, body string
}

// fakeSender records messages; errs is returned from every Send.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	errs []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	title, _ := params.Title()
	f.msgs = append(f.msgs, sent{title: title, body: message})
	return f.errs
}

func newTestNotifier(t *testing.T, s sender) (*Notifier, *metrics.NotificationMetrics) {
	t.Helper()
	m, err := metrics.NewNotificationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return newNotifier(Config{Controller: "10.0.0.2:4000", Metrics: m}, s), m
}

func TestOutageAndRecovery(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n, m := newTestNotifier(t, s)

	cause := errors.NewStd("dial tcp 10.0.0.2:4000: connection refused")
	require.NoError(t, n.Outage(t.Context(), 5, cause))
	require.NoError(t, n.Recovered(t.Context(), 90*time.Second+300*time.Millisecond))

	require.Len(t, s.msgs, 2)
	assert.Contains(t, s.msgs[0].title, "unreachable")
	assert.Contains(t, s.msgs[0].body, "10.0.0.2:4000")
	assert.Contains(t, s.msgs[0].body, "5 consecutive ticks")
	assert.Contains(t, s.msgs[0].body, "connection refused")
	assert.Contains(t, s.msgs[1].title, "reachable again")
	assert.Contains(t, s.msgs[1].body, "1m30s")

	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues(KindOutage, metrics.StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues(KindRecovery, metrics.StatusSuccess)), 0)
}

func TestDeliveryFailureIsScrubbed(t *testing.T) {
	t.Parallel()

	s := &fakeSender{errs: []error{nil, errors.NewStd("POST https://hooks.example.com/secret-token: 500")}}
	n, m := newTestNotifier(t, s)

	err := n.Test(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.NotContains(t, err.Error(), "secret-token")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Deliveries.WithLabelValues(KindTest, metrics.StatusError)), 0)
}

func TestCanceledContextSendsNothing(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n, _ := newTestNotifier(t, s)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, n.Outage(ctx, 3, nil), context.Canceled)
	assert.Empty(t, s.msgs)
}

func TestNewValidatesURLs(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(Config{URLs: []string{"nosuchservice://token@host"}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.NotContains(t, err.Error(), "token@host")
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	urls := []string{"ntfy://ntfy.sh/studio"}
	cfg := ConfigFromSettings(conf.NotificationSettings{Enabled: true, URLs: urls}, "10.0.0.2:4000")
	urls[0] = "changed"
	assert.Equal(t, []string{"ntfy://ntfy.sh/studio"}, cfg.URLs)
	assert.Equal(t, "10.0.0.2:4000", cfg.Controller)
}
