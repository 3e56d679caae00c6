package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/toolragflow/telemetry"
)

// Default values.
const (
	DefaultPath      = "ragflow-mcp.toml"
	DefaultEnvFile   = ".env"
	DefaultName      = "ragflow-mcp"
	DefaultVersion   = "1.0.0"
	DefaultTransport = TransportStdio
	DefaultAddr      = ":8080"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Validation errors.
var (
	ErrMissingBaseURL = errors.New("config: RAGFlow base URL is required (RAGFLOW_BASE_URL or --ragflow-base-url)")
	ErrMissingAPIKey  = errors.New("config: RAGFlow API key is required (RAGFLOW_API_KEY or --ragflow-api-key)")
	ErrInvalid        = errors.New("config: invalid value")
)

// Config is the full server configuration.
type Config struct {
	RAGFlow   RAGFlowConfig   `toml:"ragflow"`
	Cache     CacheConfig     `toml:"cache"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// RAGFlowConfig describes the backend connection.
type RAGFlowConfig struct {
	BaseURL         string        `toml:"base_url"`
	APIKey          string        `toml:"api_key"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ConnectTimeout  time.Duration `toml:"connect_timeout"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	MaxConnsPerHost int           `toml:"max_conns_per_host"`
	DocPageSize     int           `toml:"doc_page_size"`
}

// CacheConfig sizes the metadata caches.
type CacheConfig struct {
	DatasetCapacity  int           `toml:"dataset_capacity"`
	DocumentCapacity int           `toml:"document_capacity"`
	TTL              time.Duration `toml:"ttl"`
}

// RetrievalConfig tunes the search pipeline.
type RetrievalConfig struct {
	Timeout     time.Duration `toml:"timeout"`
	Concurrency int           `toml:"concurrency"`
}

// ServerConfig describes how the tool server is exposed.
type ServerConfig struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Transport   string `toml:"transport"`
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

// Telemetry converts the logging section for telemetry.NewLogger.
func (c LogConfig) Telemetry() telemetry.LogConfig {
	return telemetry.LogConfig{Level: c.Level, Format: c.Format, AddSource: c.AddSource}
}

// Default returns the built-in configuration. The backend URL and API key
// have no defaults.
func Default() *Config {
	return &Config{
		RAGFlow: RAGFlowConfig{
			RequestTimeout:  30 * time.Second,
			ConnectTimeout:  10 * time.Second,
			ReadTimeout:     15 * time.Second,
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			DocPageSize:     100,
		},
		Cache: CacheConfig{
			DatasetCapacity:  256,
			DocumentCapacity: 64,
			TTL:              5 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			Timeout:     120 * time.Second,
			Concurrency: 8,
		},
		Server: ServerConfig{
			Name:      DefaultName,
			Version:   DefaultVersion,
			Transport: DefaultTransport,
			Addr:      DefaultAddr,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) normalize() {
	c.RAGFlow.BaseURL = strings.TrimRight(strings.TrimSpace(c.RAGFlow.BaseURL), "/")
	c.RAGFlow.APIKey = strings.TrimSpace(c.RAGFlow.APIKey)
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
	if c.Server.Transport == "" {
		c.Server.Transport = DefaultTransport
	}
	if c.Server.Name == "" {
		c.Server.Name = DefaultName
	}
	if c.Server.Version == "" {
		c.Server.Version = DefaultVersion
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.RAGFlow.BaseURL == "" {
		errs = append(errs, ErrMissingBaseURL)
	} else if u, err := url.Parse(c.RAGFlow.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("%w: ragflow.base_url %q must be an http(s) URL", ErrInvalid, c.RAGFlow.BaseURL))
	}
	if c.RAGFlow.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}

	positive := map[string]int64{
		"ragflow.request_timeout":    int64(c.RAGFlow.RequestTimeout),
		"ragflow.connect_timeout":    int64(c.RAGFlow.ConnectTimeout),
		"ragflow.read_timeout":       int64(c.RAGFlow.ReadTimeout),
		"ragflow.max_idle_conns":     int64(c.RAGFlow.MaxIdleConns),
		"ragflow.max_conns_per_host": int64(c.RAGFlow.MaxConnsPerHost),
		"ragflow.doc_page_size":      int64(c.RAGFlow.DocPageSize),
		"cache.dataset_capacity":     int64(c.Cache.DatasetCapacity),
		"cache.document_capacity":    int64(c.Cache.DocumentCapacity),
		"cache.ttl":                  int64(c.Cache.TTL),
		"retrieval.timeout":          int64(c.Retrieval.Timeout),
		"retrieval.concurrency":      int64(c.Retrieval.Concurrency),
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalid, key))
		}
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("%w: server.transport must be %q or %q, got %q", ErrInvalid, TransportStdio, TransportHTTP, c.Server.Transport))
	}
	if c.Server.Transport == TransportHTTP && strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr is required for the http transport", ErrInvalid))
	}
	if !telemetry.ValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}
