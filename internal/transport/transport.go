// Package transport is the single path between the client and the report
// service. Every call returns either a JSON Result or a classified
// *fault.Error; no raw net/http error escapes this package.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/observability"
)

// maxBody caps how much of a response is read. Reports are a few hundred KB.
const maxBody = 8 << 20

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithPrefix overrides the API path prefix (default "/api").
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = strings.TrimRight(prefix, "/") }
}

// WithRateLimit paces outgoing requests. A zero or negative limit disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for per-request traces.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics sets the collector that receives latency and error counts.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// Client performs JSON calls against the report service.
type Client struct {
	baseURL string
	prefix  string
	http    *http.Client
	limiter *rate.Limiter
	log     *observability.Logger
	metrics *observability.MetricsCollector
}

// New creates a client for the service at baseURL (e.g. "http://127.0.0.1:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "/api",
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
		log:     observability.Discard(),
		metrics: observability.NewMetricsCollector(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Metrics returns the collector receiving request metrics.
func (c *Client) Metrics() *observability.MetricsCollector { return c.metrics }

// Result is the body of a successful call.
type Result struct {
	status int
	raw    json.RawMessage
}

// Empty reports whether the response carried no content (a confirmation).
func (r Result) Empty() bool { return len(r.raw) == 0 }

// Status returns the HTTP status code.
func (r Result) Status() int { return r.status }

// Raw returns the JSON body, nil when Empty.
func (r Result) Raw() json.RawMessage { return r.raw }

// Decode unmarshals the body into v. Decoding an empty result is an error.
func (r Result) Decode(v any) error {
	if r.Empty() {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.raw, v)
}

// CallOption adjusts how a single call classifies failures.
type CallOption func(*callConfig)

type callConfig struct {
	soft map[int]string
}

// SoftOn marks a status as a recognized empty state for this call. The
// returned *fault.Error has KindSoftDomain and the given code.
func SoftOn(status int, code string) CallOption {
	return func(cc *callConfig) {
		if cc.soft == nil {
			cc.soft = make(map[int]string)
		}
		cc.soft[status] = code
	}
}

// Call sends method+path with an optional JSON body. A nil body sends no
// payload and no Content-Type.
func (c *Client) Call(ctx context.Context, method, path string, body any, opts ...CallOption) (Result, error) {
	var cc callConfig
	for _, o := range opts {
		o(&cc)
	}
	op := method + " " + path
	c.metrics.Increment(observability.CounterRequests)

	res, err := c.do(ctx, method, path, body, op, cc)
	if err != nil {
		c.metrics.Increment(observability.ErrorCounter(fault.KindOf(err).String()))
	}
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, op string, cc callConfig) (Result, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Result{}, fault.Connectivity(op, fmt.Errorf("marshal request: %w", err))
		}
		payload = bytes.NewReader(data)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, fault.Connectivity(op, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+c.prefix+path, payload)
	if err != nil {
		return Result{}, fault.Connectivity(op, fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Request(method, path, 0, time.Since(start), "request_id", reqID, "error", err.Error())
		return Result{}, fault.Connectivity(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	elapsed := time.Since(start)
	c.metrics.ObserveLatency(op, elapsed)
	c.log.Request(method, path, resp.StatusCode, elapsed, "request_id", reqID)
	if err != nil {
		return Result{}, fault.Connectivity(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, classify(op, resp, data, cc)
	}

	data = bytes.TrimSpace(data)
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return Result{status: resp.StatusCode}, nil
	}
	if !json.Valid(data) {
		return Result{}, &fault.Error{
			Op:     op,
			Kind:   fault.KindConnectivity,
			Detail: "malformed response",
			Code:   fault.CodeMalformed,
		}
	}
	return Result{status: resp.StatusCode, raw: json.RawMessage(data)}, nil
}

// errorBody covers the error shapes the service and common proxies produce.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
}

func classify(op string, resp *http.Response, data []byte, cc callConfig) *fault.Error {
	detail, code := parseErrorBody(data)
	if detail == "" {
		detail = statusText(resp)
	}
	if code == "" {
		code = codeForStatus(resp.StatusCode)
	}

	if softCode, ok := cc.soft[resp.StatusCode]; ok {
		return fault.Soft(op, resp.StatusCode, detail, softCode)
	}
	if code == fault.CodeNoReport {
		return fault.Soft(op, resp.StatusCode, detail, code)
	}
	return fault.Hard(op, resp.StatusCode, detail, code)
}

func parseErrorBody(data []byte) (detail, code string) {
	var eb errorBody
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &eb) != nil {
		return "", ""
	}
	if d := flattenDetail(eb.Detail); d != "" {
		return d, eb.Code
	}
	if eb.Message != "" {
		return eb.Message, eb.Code
	}
	return flattenDetail(eb.Error), eb.Code
}

// flattenDetail turns a string, a {"message": ...} object or a FastAPI
// validation list into display text.
func flattenDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(raw, &obj) == nil && (obj.Message != "" || obj.Msg != "") {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Msg
	}
	var list []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg == "" {
				continue
			}
			if len(item.Loc) > 0 {
				parts = append(parts, fmt.Sprintf("%v: %s", item.Loc[len(item.Loc)-1], item.Msg))
			} else {
				parts = append(parts, item.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// statusText returns the reason phrase of the status line.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return fault.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fault.CodeInvalid
	case http.StatusConflict:
		return fault.CodeConflict
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fault.CodeTimeout
	default:
		return ""
	}
}
