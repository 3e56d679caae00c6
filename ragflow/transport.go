package ragflow

import (
	"net"
	"net/http"
	"time"
)

// transportConfig describes the pooled connection context to the backend.
type transportConfig struct {
	maxIdleConns    int
	maxConnsPerHost int
	connectTimeout  time.Duration
	readTimeout     time.Duration
}

func newTransport(cfg transportConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.maxIdleConns,
		MaxIdleConnsPerHost:   cfg.maxConnsPerHost,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.connectTimeout,
		ResponseHeaderTimeout: cfg.readTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// headerRoundTripper sets fixed headers on every outgoing request. Headers
// already present on the request win.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := h.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	for key, value := range h.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return base.RoundTrip(req)
}

func httpClientWithHeaders(base http.RoundTripper, headers map[string]string) *http.Client {
	clone := make(map[string]string, len(headers))
	for k, v := range headers {
		if k == "" {
			continue
		}
		clone[k] = v
	}
	return &http.Client{
		Transport: &headerRoundTripper{
			base:    base,
			headers: clone,
		},
	}
}

// CloseIdleConnections forwards to the base transport so http.Client can
// release pooled connections on teardown.
func (h *headerRoundTripper) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := h.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}
