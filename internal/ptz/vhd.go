package ptz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"
	"golang.org/x/time/rate"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/httpclient"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
)

// ProtocolVHD is the registry name of the VHD CGI protocol.
const ProtocolVHD = "vhd"

const (
	ptzPath   = "/cgi-bin/ptzctrl.cgi"
	paramPath = "/cgi-bin/param.cgi"

	// maxBodyBytes caps what is read from a camera answer.
	maxBodyBytes = 64 << 10

	resultSuccess = "Success"
)

// VHD drives a VHD camera through ptzctrl.cgi.
type VHD struct {
	address string
	baseURL string
	timeout time.Duration
	client  *httpclient.Client
	limiter *rate.Limiter
	retry   *httpclient.RetryPolicy
	metrics *metrics.PTZMetrics
	log     logger.Logger
}

// NewVHD is the Factory for ProtocolVHD.
func NewVHD(cameraIP string, opts Options) (Controller, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://" + cameraIP
	}

	client := opts.HTTPClient
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: opts.Timeout})
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	log := opts.Logger
	if log == nil {
		log = GetLogger()
	}

	return &VHD{
		address: cameraIP,
		baseURL: baseURL,
		timeout: opts.Timeout,
		client:  client,
		limiter: limiter,
		retry:   opts.Retry,
		metrics: opts.Metrics,
		log:     log.With(logger.String("camera", cameraIP)),
	}, nil
}

// Address returns the camera IP.
func (v *VHD) Address() string {
	return v.address
}

// CallURL builds the ptzctrl.cgi URL for action with the optional arguments.
func (v *VHD) CallURL(action, position, zoom string) string {
	params := []string{"ptzcmd", action}
	if position != "" {
		params = append(params, position)
	}
	if zoom != "" {
		params = append(params, zoom)
	}
	return v.baseURL + ptzPath + "?" + strings.Join(params, "&")
}

// Call issues one ptzcmd. Any failure is a ClientError.
func (v *VHD) Call(ctx context.Context, action, position, zoom string) (*Result, error) {
	url := v.CallURL(action, position, zoom)

	start := time.Now()
	status, body, err := v.get(ctx, action, url)
	if err == nil {
		err = checkCallBody(body)
		if err != nil {
			err = v.clientError(err, action, url, status)
		}
	}
	v.metrics.RecordRequest(action, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	v.log.Debug("camera command accepted",
		logger.String("action", action),
		logger.String("position", position),
		logger.String("zoom", zoom))
	return &Result{Action: action, StatusCode: status, Body: body}, nil
}

// Ping returns the raw device configuration.
func (v *VHD) Ping(ctx context.Context) (string, error) {
	url := v.baseURL + paramPath + "?get_device_conf"

	start := time.Now()
	_, body, err := v.get(ctx, "ping", url)
	v.metrics.RecordRequest("ping", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return body, nil
}

// get performs the request and requires a 200 answer.
func (v *VHD) get(ctx context.Context, action, url string) (int, string, error) {
	// with retries the timeout bounds each attempt instead of the whole call
	if v.timeout > 0 && v.retry == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return 0, "", v.clientError(fmt.Errorf("rate limiter: %w", err), action, url, 0)
		}
	}

	var resp *http.Response
	var err error
	if v.retry != nil {
		resp, err = v.client.GetWithRetry(ctx, url, *v.retry)
	} else {
		resp, err = v.client.Get(ctx, url)
	}
	if err != nil {
		return 0, "", v.clientError(err, action, url, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, "", v.clientError(fmt.Errorf("read body: %w", err), action, url, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, string(data), v.clientError(
			fmt.Errorf("SetCamFailed: error code: %d", resp.StatusCode), action, url, resp.StatusCode)
	}
	return resp.StatusCode, string(data), nil
}

func (v *VHD) clientError(err error, action, url string, status int) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryClient).
		Context("camera", v.address).
		Context("action", action).
		Context("url", url).
		Context("status_code", status).
		Build()
}

// errCannotSetPreset is returned for answers that match no success shape.
var errCannotSetPreset = errors.NewStd("cannot set preset")

// checkCallBody accepts the success shapes camera firmwares answer with:
// a JSON object whose Response.Result is "Success", an empty body, or a
// text or HTML body mentioning success.
func checkCallBody(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}

	if obj, err := jason.NewObjectFromBytes([]byte(trimmed)); err == nil {
		result, err := obj.GetString("Response", "Result")
		if err == nil && result == resultSuccess {
			return nil
		}
		return errCannotSetPreset
	}

	text := trimmed
	if strings.HasPrefix(text, "<") {
		text = html2text.HTML2Text(text)
	}
	if strings.Contains(strings.ToLower(text), "success") {
		return nil
	}
	return errCannotSetPreset
}
