package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	transport := &http.Transport{}
	tests := []struct {
		name        string
		cfg         *Config
		wantTimeout time.Duration
		wantAgent   string
	}{
		{name: "nil config", cfg: nil, wantTimeout: DefaultTimeout, wantAgent: defaultUserAgent},
		{name: "zero config", cfg: &Config{}, wantTimeout: DefaultTimeout, wantAgent: defaultUserAgent},
		{name: "camera timeout", cfg: &Config{DefaultTimeout: 3 * time.Second}, wantTimeout: 3 * time.Second, wantAgent: defaultUserAgent},
		{name: "custom agent", cfg: &Config{UserAgent: "camtrack-operator"}, wantTimeout: DefaultTimeout, wantAgent: "camtrack-operator"},
		{name: "custom transport", cfg: &Config{Transport: transport}, wantTimeout: DefaultTimeout, wantAgent: defaultUserAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newClient(t, tt.cfg)
			assert.Equal(t, tt.wantTimeout, client.defaultTimeout)
			assert.Equal(t, tt.wantAgent, client.userAgent)
			if tt.cfg != nil && tt.cfg.Transport != nil {
				assert.Same(t, tt.cfg.Transport, client.HTTPClient().Transport)
			}
		})
	}
}

func TestGetKeepsCGIQuery(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(successJSON))
	})
	client := newClient(t, nil)

	resp, err := client.Get(t.Context(), cam.ptzURL("home&10&10"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, successJSON, readBody(t, resp))

	resp, err = client.Get(t.Context(), cam.paramURL())
	require.NoError(t, err)
	closeBody(resp)

	assert.Equal(t, []string{
		"/cgi-bin/ptzctrl.cgi?ptzcmd&home&10&10",
		"/cgi-bin/param.cgi?get_device_conf",
	}, cam.seen(), "bare ampersand arguments reach the camera unchanged")
	assert.Equal(t, []string{defaultUserAgent, defaultUserAgent}, cam.userAgents())
}

func TestBodyReadableAfterGetReturns(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("poscall success"))
	})
	client := newClient(t, &Config{DefaultTimeout: time.Second})

	resp, err := client.Get(t.Context(), cam.ptzURL("poscall&12"))
	require.NoError(t, err)
	assert.Equal(t, "poscall success", readBody(t, resp), "the request context lives until the body is closed")
}

func TestDefaultTimeoutBoundsSlowCamera(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client := newClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	start := time.Now()
	resp, err := client.Get(t.Context(), cam.ptzURL("poscall&12"))
	closeBody(resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallerDeadlineReplacesDefault(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write([]byte("success"))
	})
	client := newClient(t, &Config{DefaultTimeout: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	resp, err := client.Get(ctx, cam.ptzURL("home&10&10"))
	require.NoError(t, err)
	assert.Equal(t, "success", readBody(t, resp))
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {})
	client := newClient(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := client.Get(ctx, cam.paramURL())
	closeBody(resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cam.seen())
}

func TestHooksSeeCameraRequests(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := newClient(t, nil)

	var before string
	var afterStatus int
	client.SetBeforeRequestHook(func(r *http.Request) {
		before = r.URL.RawQuery
	})
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		assert.NoError(t, err)
		afterStatus = resp.StatusCode
	})

	resp, err := client.Get(t.Context(), cam.ptzURL("posset&14"))
	require.NoError(t, err, "a 5xx answer is not a transport error")
	closeBody(resp)

	assert.Equal(t, "ptzcmd&posset&14", before)
	assert.Equal(t, http.StatusServiceUnavailable, afterStatus)
}

func TestConcurrentCameras(t *testing.T) {
	t.Parallel()

	cam := newFakeCamera(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(successJSON))
	})
	client := newClient(t, nil)

	// one poscall per camera of a large room within the same tick
	const cameras = 16
	errs := make(chan error, cameras)
	var wg sync.WaitGroup
	for i := range cameras {
		wg.Go(func() {
			resp, err := client.Get(t.Context(), cam.ptzURL(fmt.Sprintf("poscall&%d", 10+i)))
			if err != nil {
				errs <- err
				return
			}
			defer closeBody(resp)
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("camera %d: status %d", i, resp.StatusCode)
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, cam.seen(), cameras)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	client := New(nil)
	client.Close()
	client.Close()
}
