// Package dcerno maintains the TCCP session with a D-Cerno microphone
// controller and exposes the unit queries the tracking engine needs.
package dcerno

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/tccp"
)

const component = "dcerno"

// Defaults applied by New to zero Config fields.
const (
	DefaultConnectTimeout = 20 * time.Second
	DefaultIOTimeout      = 20 * time.Second
	DefaultPingTimeout    = 2 * time.Second
	DefaultMaxReplyBytes  = 4096
	DefaultClientName     = "DU"
	DefaultClientVersion  = "1.01"
)

// Config describes one controller endpoint.
type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	IOTimeout      time.Duration
	PingTimeout    time.Duration
	MaxReplyBytes  int
	ClientName     string
	ClientVersion  string

	Logger  logger.Logger
	Metrics *metrics.DcernoMetrics
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MicrophoneUnit is one unit of a poll snapshot.
type MicrophoneUnit struct {
	UID    string `json:"uid"`
	Active bool   `json:"active"`
}

// Link owns the single TCP session to a controller. Callers serialize on it.
type Link struct {
	cfg Config
	log logger.Logger
	now func() time.Time

	mu        sync.Mutex
	conn      net.Conn
	sessionID string
}

// New returns a Link for cfg. No connection is opened until first use or Connect.
func New(cfg Config) *Link {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultPingTimeout
	}
	if cfg.MaxReplyBytes <= 0 {
		cfg.MaxReplyBytes = DefaultMaxReplyBytes
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = DefaultClientVersion
	}

	log := cfg.Logger
	if log == nil {
		log = GetLogger()
	}

	return &Link{
		cfg: cfg,
		log: log.With(logger.String("controller", cfg.Address())),
		now: time.Now,
	}
}

// Address returns the controller endpoint.
func (l *Link) Address() string {
	return l.cfg.Address()
}

// SessionID identifies the current session in logs; empty when disconnected.
func (l *Link) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// Connect opens and authenticates the session if none is open.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}
	return l.connectLocked(ctx)
}

// Close drops the session. It is safe to call on a closed link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropLocked()
}

// Ping opens a separate short-lived session with the ping timeout and
// closes it again; the shared session is left untouched.
func (l *Link) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.PingTimeout)
	defer cancel()

	conn, err := l.dial(ctx, l.cfg.PingTimeout)
	if err != nil {
		return errors.ClientError(fmt.Errorf("microphone controller unreachable: %w", err), component)
	}
	defer func() { _ = conn.Close() }()

	if err := l.handshake(ctx, conn, l.cfg.PingTimeout); err != nil {
		return errors.ClientError(fmt.Errorf("microphone controller unreachable: %w", err), component)
	}
	return nil
}

// Send writes one encoded packet. If no socket is open or the write fails,
// it reconnects once and writes again.
func (l *Link) Send(ctx context.Context, payload string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.withRetry(ctx, "send", func() error {
		return l.sendLocked(ctx, payload)
	})
}

// Receive reads one reply of at most MaxReplyBytes. If no socket is open or
// the read fails, it reconnects once and reads again. A reply cut short
// before ETX is returned and the session is closed.
func (l *Link) Receive(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var raw string
	err := l.withRetry(ctx, "receive", func() error {
		var err error
		raw, err = l.receiveLocked(ctx)
		return err
	})
	if err == nil && !complete(raw) {
		_ = l.dropLocked()
	}
	return raw, err
}

// GetActiveUnits lists every unit known to the controller in listing order.
func (l *Link) GetActiveUnits(ctx context.Context) ([]MicrophoneUnit, error) {
	reply, err := l.request(ctx, "gunits", tccp.IDUnits, tccp.UnitsRequestBody())
	if err != nil {
		return nil, errors.ClientError(fmt.Errorf("cannot list microphone units: %w", err), component)
	}
	return toUnits(reply), nil
}

// GetMicrophoneStatuses queries gmicstat for uid; "0" returns all units.
func (l *Link) GetMicrophoneStatuses(ctx context.Context, uid string) ([]MicrophoneUnit, error) {
	reply, err := l.request(ctx, "gmicstat", tccp.IDMicStatus, tccp.MicStatusRequestBody(uid))
	if err != nil {
		return nil, errors.ClientError(fmt.Errorf("cannot read status of microphone %s: %w", uid, err), component)
	}
	return toUnits(reply), nil
}

// GetMicrophoneStatus returns the status of one microphone.
func (l *Link) GetMicrophoneStatus(ctx context.Context, uid string) (MicrophoneUnit, error) {
	units, err := l.GetMicrophoneStatuses(ctx, uid)
	if err != nil {
		return MicrophoneUnit{}, err
	}
	for _, u := range units {
		if u.UID == uid {
			return u, nil
		}
	}
	return MicrophoneUnit{}, errors.New(fmt.Errorf("microphone %s not found on controller", uid)).
		Component(component).
		Category(errors.CategoryNotFound).
		Context("uid", uid).
		Build()
}

// HasMicrophone reports whether the controller lists uid.
func (l *Link) HasMicrophone(ctx context.Context, uid string) (bool, error) {
	units, err := l.GetActiveUnits(ctx)
	if err != nil {
		return false, err
	}
	for _, u := range units {
		if u.UID == uid {
			return true, nil
		}
	}
	return false, nil
}

func toUnits(reply *tccp.UnitsReply) []MicrophoneUnit {
	units := make([]MicrophoneUnit, 0, len(reply.Units))
	for _, u := range reply.Units {
		units = append(units, MicrophoneUnit{UID: u.UID, Active: u.Active()})
	}
	return units
}

// request runs one get exchange. A failed exchange is retried once on a
// fresh session; the request is resent because the reply of the old session is lost.
func (l *Link) request(ctx context.Context, op, packetID, body string) (*tccp.UnitsReply, error) {
	packet, err := tccp.Encode(tccp.TypeGet, packetID, tccp.FormatJSON, body)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now()
	var raw string
	err = l.withRetry(ctx, op, func() error {
		if err := l.sendLocked(ctx, packet); err != nil {
			return err
		}
		var err error
		raw, err = l.receiveLocked(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.cfg.Metrics.ObserveRoundTrip(op, l.now().Sub(start).Seconds())

	reply, err := parseReply(op, raw)
	if err != nil || !complete(raw) {
		// unread bytes of this reply would answer the next request
		l.log.Warn("discarding controller session after unusable reply",
			logger.String("operation", op),
			logger.String("session_id", l.sessionID),
			logger.Int("reply_bytes", len(raw)),
			logger.Bool("complete", complete(raw)))
		_ = l.dropLocked()
	}
	return reply, err
}

func parseReply(op, raw string) (*tccp.UnitsReply, error) {
	if !tccp.IsReply(raw) {
		return nil, errors.DecodeError(fmt.Errorf("%s: controller answered without a reply packet", op))
	}
	decoded, err := tccp.Decode(raw)
	if err != nil {
		return nil, err
	}
	return tccp.ParseUnits(decoded)
}

// complete reports whether raw ends exactly at a packet terminator.
func complete(raw string) bool {
	return raw != "" && raw[len(raw)-1] == tccp.ETX
}

// withRetry runs fn, reconnecting first when no socket is open. On failure
// the session is replaced once and fn runs again; a second failure is a
// TransportError. Must be called with mu held.
func (l *Link) withRetry(ctx context.Context, op string, fn func() error) error {
	if l.conn == nil {
		if err := l.connectLocked(ctx); err != nil {
			return err
		}
	}

	err := fn()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		_ = l.dropLocked()
		return errors.TransportError(fmt.Errorf("%s: %w", op, ctx.Err()), op)
	}

	l.log.Warn("controller exchange failed, reconnecting",
		logger.String("operation", op),
		logger.String("session_id", l.sessionID),
		logger.Error(err))
	l.cfg.Metrics.RecordReconnect()
	_ = l.dropLocked()

	if err := l.connectLocked(ctx); err != nil {
		return errors.TransportError(fmt.Errorf("%s: reconnect failed: %w", op, err), op)
	}
	if err := fn(); err != nil {
		_ = l.dropLocked()
		return errors.TransportError(fmt.Errorf("%s: %w", op, err), op)
	}
	return nil
}

func (l *Link) connectLocked(ctx context.Context) error {
	address := l.cfg.Address()

	conn, err := l.dial(ctx, l.cfg.ConnectTimeout)
	if err != nil {
		l.cfg.Metrics.RecordConnect(err)
		return errors.ConnectError(fmt.Errorf("dial %s: %w", address, err), address)
	}

	if err := l.handshake(ctx, conn, l.cfg.ConnectTimeout); err != nil {
		_ = conn.Close()
		l.cfg.Metrics.RecordConnect(err)
		return errors.ConnectError(fmt.Errorf("handshake with %s: %w", address, err), address)
	}

	l.conn = conn
	l.sessionID = uuid.NewString()
	l.cfg.Metrics.RecordConnect(nil)
	l.log.Info("connected to microphone controller", logger.String("session_id", l.sessionID))
	return nil
}

func (l *Link) dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "tcp", l.cfg.Address())
}

// handshake sends the con packet and requires a reply packet back.
func (l *Link) handshake(ctx context.Context, conn net.Conn, timeout time.Duration) error {
	body := tccp.HandshakeBody(l.cfg.ClientName, l.cfg.ClientVersion, l.now().Format(time.RFC3339))
	packet, err := tccp.Encode(tccp.TypeConnect, tccp.IDConnect, tccp.FormatJSON, body)
	if err != nil {
		return err
	}

	if err := writeAll(ctx, conn, packet, timeout); err != nil {
		return err
	}
	reply, err := readReply(ctx, conn, l.cfg.MaxReplyBytes, timeout)
	if err != nil {
		return err
	}
	if !tccp.IsReply(reply) {
		return fmt.Errorf("controller rejected handshake: %q", truncate(reply, 64))
	}
	if !complete(reply) {
		return fmt.Errorf("handshake reply not terminated after %d bytes", len(reply))
	}
	return nil
}

func (l *Link) sendLocked(ctx context.Context, payload string) error {
	return writeAll(ctx, l.conn, payload, l.cfg.IOTimeout)
}

func (l *Link) receiveLocked(ctx context.Context) (string, error) {
	return readReply(ctx, l.conn, l.cfg.MaxReplyBytes, l.cfg.IOTimeout)
}

func (l *Link) dropLocked() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.sessionID = ""
	l.cfg.Metrics.RecordDisconnect()
	return err
}

// bindContext interrupts blocked I/O on conn once ctx is done, so a context
// deadline earlier than the I/O timeout still bounds the call.
func bindContext(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
}

func writeAll(ctx context.Context, conn net.Conn, payload string, timeout time.Duration) error {
	if conn == nil {
		return net.ErrClosed
	}
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	stop := bindContext(ctx, conn)
	defer stop()

	_, err := conn.Write([]byte(payload))
	return err
}

// readReply reads until ETX, maxBytes or the deadline. Data read before a
// timeout is returned as the reply.
func readReply(ctx context.Context, conn net.Conn, maxBytes int, timeout time.Duration) (string, error) {
	if conn == nil {
		return "", net.ErrClosed
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	stop := bindContext(ctx, conn)
	defer stop()

	var buf bytes.Buffer
	chunk := make([]byte, min(maxBytes, 1024))
	for buf.Len() < maxBytes {
		n, err := conn.Read(chunk[:min(len(chunk), maxBytes-buf.Len())])
		buf.Write(chunk[:n])
		if bytes.IndexByte(chunk[:n], tccp.ETX) >= 0 {
			break
		}
		if err != nil {
			if buf.Len() > 0 && (isTimeout(err) || errors.Is(err, io.EOF)) && ctx.Err() == nil {
				break
			}
			return "", err
		}
	}
	return buf.String(), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
