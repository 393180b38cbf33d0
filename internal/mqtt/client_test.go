package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

// fakeToken completes immediately unless pending is set.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, pending bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if !pending {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeBroker implements paho.Client in memory.
type fakeBroker struct {
	mu           sync.Mutex
	opts         *paho.ClientOptions
	connected    bool
	connectErr   error
	publishStuck bool
	published    []message
	disconnects  int
}

func (b *fakeBroker) factory(opts *paho.ClientOptions) paho.Client {
	b.opts = opts
	return b
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}
func (b *fakeBroker) IsConnectionOpen() bool { return b.IsConnected() }
func (b *fakeBroker) Connect() paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = b.connectErr == nil
	return newToken(b.connectErr, false)
}
func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.disconnects++
}
func (b *fakeBroker) Publish(topic string, _ byte, retained bool, payload any) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishStuck {
		return newToken(nil, true)
	}
	b.published = append(b.published, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return newToken(nil, false)
}
func (b *fakeBroker) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return newToken(nil, false)
}
func (b *fakeBroker) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return newToken(nil, false)
}
func (b *fakeBroker) Unsubscribe(...string) paho.Token       { return newToken(nil, false) }
func (b *fakeBroker) AddRoute(string, paho.MessageHandler)   {}
func (b *fakeBroker) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeBroker, *metrics.MQTTMetrics) {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	broker := &fakeBroker{}
	c := NewClient(cfg, m)
	c.newClient = broker.factory
	return c, broker, m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Broker = "tcp://127.0.0.1:1883"
	cfg.ClientID = "camtrack-test"
	cfg.PublishTimeout = 20 * time.Millisecond
	return cfg
}

func TestConnectAndPublish(t *testing.T) {
	t.Parallel()

	c, broker, m := newTestClient(t, testConfig())
	require.NoError(t, c.Connect(t.Context()))
	assert.True(t, c.IsConnected())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)

	require.NoError(t, c.Publish(t.Context(), "camtrack/test", []byte("hello")))
	require.Len(t, broker.published, 1)
	assert.Equal(t, "camtrack/test", broker.published[0].topic)
	assert.False(t, broker.published[0].retained)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered), 0)

	assert.Equal(t, "camtrack-test", broker.opts.ClientID)
	assert.True(t, broker.opts.AutoReconnect)

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, broker.disconnects)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
	c.Disconnect()
	assert.Equal(t, 1, broker.disconnects, "second disconnect is a no-op")
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t, testConfig())
	err := c.Publish(t.Context(), "camtrack/test", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()

	c, broker, m := newTestClient(t, testConfig())
	broker.connectErr = errors.NewStd("not authorized")

	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.Contains(t, err.Error(), "not authorized")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)
}

func TestInvalidBroker(t *testing.T) {
	t.Parallel()

	for _, broker := range []string{"", "::not a url", "localhost"} {
		cfg := testConfig()
		cfg.Broker = broker
		c, _, _ := newTestClient(t, cfg)
		err := c.Connect(t.Context())
		require.Error(t, err, broker)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration), broker)
	}
}

func TestPublishTimeout(t *testing.T) {
	t.Parallel()

	c, broker, m := newTestClient(t, testConfig())
	require.NoError(t, c.Connect(t.Context()))
	broker.publishStuck = true

	err := c.Publish(t.Context(), "camtrack/test", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = c.Publish(ctx, "camtrack/test", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConnectionLostHandlers(t *testing.T) {
	t.Parallel()

	c, _, m := newTestClient(t, testConfig())
	require.NoError(t, c.Connect(t.Context()))

	c.onConnectionLost(nil, errors.NewStd("EOF"))
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
	c.onReconnecting(nil, nil)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReconnectAttempts), 0)
	c.onConnect(nil)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestPublisher(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Topic = "studio"
	cfg.Retain = true
	c, broker, _ := newTestClient(t, cfg)
	require.NoError(t, c.Connect(t.Context()))

	p := NewPublisher(c)
	event := tracking.Event{
		CameraIP: "10.0.0.5",
		From:     "home",
		To:       "tracking(micA)",
		MicroID:  "micA",
		Action:   "poscall",
		Preset:   12,
		Time:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Publish(t.Context(), event))

	require.Len(t, broker.published, 1)
	msg := broker.published[0]
	assert.Equal(t, "studio/cameras/10.0.0.5/state", msg.topic)
	assert.True(t, msg.retained)
	assert.JSONEq(t, `{
		"camera_ip": "10.0.0.5",
		"from": "home",
		"to": "tracking(micA)",
		"micro_id": "micA",
		"action": "poscall",
		"preset": 12,
		"time": "2026-01-02T03:04:05Z"
	}`, string(msg.payload))
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	a := ConfigFromSettings(conf.MQTTSettings{Broker: "tcp://broker:1883", Retain: true})
	b := ConfigFromSettings(conf.MQTTSettings{Broker: "tcp://broker:1883", Topic: "hall"})

	assert.Equal(t, "camtrack", a.Topic)
	assert.Equal(t, "hall", b.Topic)
	assert.True(t, a.Retain)
	assert.NotEqual(t, a.ClientID, b.ClientID)
	assert.Contains(t, a.ClientID, "camtrack-")
}
