package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCamera serves the CGI endpoints of a PTZ camera and records the raw
// query and user agent of every request it receives.
type fakeCamera struct {
	*httptest.Server

	mu      sync.Mutex
	queries []string
	agents  []string
}

func newFakeCamera(t *testing.T, handler http.HandlerFunc) *fakeCamera {
	t.Helper()
	cam := &fakeCamera{}
	cam.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cam.mu.Lock()
		cam.queries = append(cam.queries, r.URL.Path+"?"+r.URL.RawQuery)
		cam.agents = append(cam.agents, r.Header.Get("User-Agent"))
		cam.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(cam.Close)
	return cam
}

// ptzURL is the ptzctrl.cgi address of a command.
func (c *fakeCamera) ptzURL(command string) string {
	return c.URL + "/cgi-bin/ptzctrl.cgi?ptzcmd&" + command
}

func (c *fakeCamera) paramURL() string {
	return c.URL + "/cgi-bin/param.cgi?get_device_conf"
}

func (c *fakeCamera) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

func (c *fakeCamera) userAgents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.agents...)
}

// newClient returns a client closed at the end of the test; cfg may be nil.
func newClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// readBody reads and closes resp.Body.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer closeBody(resp)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// successJSON is the reply of newer VHD firmware.
const successJSON = `{"Response":{"Result":"Success"}}`
