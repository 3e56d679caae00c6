package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Defaults applied by NewClient when an Options field is zero.
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultMaxIdleConns    = 100
	DefaultMaxConnsPerHost = 10
	DefaultDocPageSize     = 100

	apiPrefix = "/api/v1"
)

// RequestObserver is told about every completed request. Status is 0 when no
// HTTP response was received.
type RequestObserver func(method, route string, status int, elapsed time.Duration)

// Options configures a Client.
type Options struct {
	// BaseURL is the RAGFlow server root, e.g. http://ragflow:9380. Required.
	BaseURL string
	// APIKey is sent as a bearer token. Required.
	APIKey string

	// RequestTimeout bounds one request from dial to the end of the body.
	// Default: 30s
	RequestTimeout time.Duration
	// ConnectTimeout bounds dialing and TLS handshakes. Default: 10s
	ConnectTimeout time.Duration
	// ReadTimeout bounds the wait for response headers. Default: 15s
	ReadTimeout time.Duration
	// MaxIdleConns bounds pooled idle connections. Default: 100
	MaxIdleConns int
	// MaxConnsPerHost bounds concurrent connections to the backend. Default: 10
	MaxConnsPerHost int
	// DocPageSize is the page size used while walking document listings.
	// Default: 100
	DocPageSize int

	// Transport overrides the pooled transport (useful for tests).
	Transport http.RoundTripper
	// Logger receives diagnostics. Default: slog.Default()
	Logger *slog.Logger
	// Observer is notified of each request, typically to record metrics.
	Observer RequestObserver
}

// Client talks to one RAGFlow backend over a pooled, authenticated transport.
type Client struct {
	baseURL        string
	apiURL         string
	http           *http.Client
	requestTimeout time.Duration
	docPageSize    int
	logger         *slog.Logger
	observer       RequestObserver

	mu      sync.RWMutex
	closed  bool
	onClose []func()
}

// NewClient validates opts and creates a Client with its connection pool.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid base URL %q", ErrInvalidConfig, opts.BaseURL)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	docPageSize := opts.DocPageSize
	if docPageSize <= 0 {
		docPageSize = DefaultDocPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.Transport
	if base == nil {
		tc := transportConfig{
			maxIdleConns:    opts.MaxIdleConns,
			maxConnsPerHost: opts.MaxConnsPerHost,
			connectTimeout:  opts.ConnectTimeout,
			readTimeout:     opts.ReadTimeout,
		}
		if tc.maxIdleConns <= 0 {
			tc.maxIdleConns = DefaultMaxIdleConns
		}
		if tc.maxConnsPerHost <= 0 {
			tc.maxConnsPerHost = DefaultMaxConnsPerHost
		}
		if tc.connectTimeout <= 0 {
			tc.connectTimeout = DefaultConnectTimeout
		}
		if tc.readTimeout <= 0 {
			tc.readTimeout = DefaultReadTimeout
		}
		base = newTransport(tc)
	}

	c := &Client{
		baseURL: baseURL,
		apiURL:  baseURL + apiPrefix,
		http: httpClientWithHeaders(base, map[string]string{
			"Authorization": "Bearer " + opts.APIKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		}),
		requestTimeout: requestTimeout,
		docPageSize:    docPageSize,
		logger:         logger,
		observer:       opts.Observer,
	}
	logger.Info("ragflow client initialized", "base_url", baseURL)
	return c, nil
}

// BaseURL returns the backend root URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// APIURL returns the versioned API root, e.g. http://ragflow:9380/api/v1.
func (c *Client) APIURL() string { return c.apiURL }

// OnClose registers fn to run once when the client is closed. Hooks run while
// teardown holds the client lock and must not call back into the client.
func (c *Client) OnClose(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
}

// Close releases pooled connections and runs the registered teardown hooks.
// Requests that have started are allowed to finish first; none may begin
// afterwards. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.http.CloseIdleConnections()
	for _, fn := range c.onClose {
		fn()
	}
	c.onClose = nil
	c.logger.Info("ragflow client closed")
	return nil
}

// Request performs an authenticated call against path (relative to the API
// root) and returns the decoded JSON body. A 204 or empty body yields an
// empty object; a body that is not JSON yields {"data": <raw text>}.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ragflow: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("ragflow: build request: %w", err)
	}

	route := routeOf(path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, route, 0, time.Since(start))
		return nil, c.transportError(method, target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	c.observe(method, route, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, c.transportError(method, target, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Error("ragflow api error", "method", method, "url", target, "status", resp.StatusCode, "body", string(raw))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	v, err := decodeJSON(raw)
	if err != nil {
		c.logger.Warn("ragflow returned non-JSON body", "url", target, "body", string(raw))
		return map[string]any{"data": string(raw)}, nil
	}
	return v, nil
}

func (c *Client) transportError(method, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error("ragflow request timed out", "method", method, "url", target)
		return fmt.Errorf("%w: %s %s", ErrTimeout, method, target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Error("ragflow request timed out", "method", method, "url", target)
		return fmt.Errorf("%w: %s %s", ErrTimeout, method, target)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("ragflow: request canceled: %w", err)
	}
	c.logger.Error("ragflow connection error", "method", method, "url", target, "error", err)
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

func (c *Client) observe(method, route string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, route, status, elapsed)
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// routeOf maps a request path to a low-cardinality route label.
func routeOf(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) >= 2 && segments[0] == "datasets" {
		segments[1] = "{id}"
	}
	return "/" + strings.Join(segments, "/")
}
