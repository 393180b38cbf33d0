package dcerno

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camtrack/dcerno-vhd/internal/tccp"
)

// exchange is what the fake controller saw: the session number (1-based),
// the request index within the session and the raw packet.
type exchange struct {
	session int
	index   int
	raw     string
}

// replyFunc returns the raw reply to write, or drop=true to close the
// session without answering.
type replyFunc func(ex exchange) (reply string, drop bool)

type fakeController struct {
	t        *testing.T
	listener net.Listener
	reply    replyFunc

	mu       sync.Mutex
	sessions int
	seen     []exchange
	conns    []net.Conn

	wg sync.WaitGroup
}

func newFakeController(t *testing.T, reply replyFunc) *fakeController {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeController{t: t, listener: ln, reply: reply}
	f.wg.Go(f.acceptLoop)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeController) host() string {
	return f.listener.Addr().(*net.TCPAddr).IP.String()
}

func (f *fakeController) port() int {
	return f.listener.Addr().(*net.TCPAddr).Port
}

func (f *fakeController) config() Config {
	return Config{Host: f.host(), Port: f.port()}
}

func (f *fakeController) acceptLoop() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.sessions++
		session := f.sessions
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		f.wg.Go(func() { f.serve(conn, session) })
	}
}

func (f *fakeController) serve(conn net.Conn, session int) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	for index := 0; ; index++ {
		raw, err := reader.ReadString(tccp.ETX)
		if err != nil {
			return
		}
		ex := exchange{session: session, index: index, raw: raw}
		f.mu.Lock()
		f.seen = append(f.seen, ex)
		f.mu.Unlock()

		reply, drop := f.reply(ex)
		if drop {
			return
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

func (f *fakeController) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *fakeController) requests() []exchange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]exchange(nil), f.seen...)
}

// Close stops accepting, closes every session and waits for the handlers.
func (f *fakeController) Close() {
	_ = f.listener.Close()
	f.mu.Lock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// replyPacket frames body as a controller reply.
func replyPacket(t *testing.T, id, body string) string {
	t.Helper()
	packet, err := tccp.Encode(tccp.TypeReply, id, tccp.FormatJSON, body)
	require.NoError(t, err)
	return packet
}

func isHandshake(raw string) bool {
	return strings.Contains(raw, tccp.TypeConnect+tccp.IDConnect)
}

// standardReplies acknowledges handshakes and answers requests with units.
func standardReplies(t *testing.T, units string) replyFunc {
	return func(ex exchange) (string, bool) {
		if isHandshake(ex.raw) {
			return replyPacket(t, tccp.IDConnect, `{"nam":"con","res":"ok"}`), false
		}
		return replyPacket(t, tccp.IDUnits, units), false
	}
}
