package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/toolragflow/config"
	"github.com/jonwraymond/toolragflow/metadata"
	"github.com/jonwraymond/toolragflow/ragflow"
	"github.com/jonwraymond/toolragflow/retrieval"
	"github.com/jonwraymond/toolragflow/search"
	"github.com/jonwraymond/toolragflow/telemetry"
	"github.com/jonwraymond/toolragflow/toolargs"
)

// Config configures a Registry.
type Config struct {
	// App holds the backend, cache and retrieval settings. Required.
	App *config.Config
	// ServerInfo overrides the name and version from App.Server.
	ServerInfo ServerInfo
	// Logger receives diagnostics. Default: slog.Default()
	Logger *slog.Logger
	// Metrics records backend, cache and tool metrics. Optional.
	Metrics *telemetry.Metrics
	// Gatherer backs the /metrics endpoint. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// Transport overrides the backend HTTP transport (useful for tests).
	Transport http.RoundTripper
}

// ServerInfo describes this MCP server for initialize response.
type ServerInfo struct {
	Name    string
	Version string
}

type localTool struct {
	tool    model.Tool
	backend model.ToolBackend
	handler ToolHandler
}

// deps are the backend-facing components, built on first use.
type deps struct {
	client    *ragflow.Client
	datasets  *metadata.DatasetResolver
	documents *metadata.DocumentResolver
	service   *retrieval.Service
	finder    *search.Finder
}

// Registry owns the MCP server, its tools and the lazily connected
// RAGFlow components behind them.
type Registry struct {
	config  Config
	app     *config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	server  *mcp.Server

	mu    sync.RWMutex
	tools map[string]*localTool

	depsMu sync.Mutex
	deps   *deps
	closed bool
}

// New creates a Registry and registers the built-in tools.
func New(cfg Config) (*Registry, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("%w: app config is required", ErrInvalidConfig)
	}
	if cfg.ServerInfo.Name == "" {
		cfg.ServerInfo.Name = cfg.App.Server.Name
	}
	if cfg.ServerInfo.Version == "" {
		cfg.ServerInfo.Version = cfg.App.Server.Version
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := &Registry{
		config:  cfg,
		app:     cfg.App,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.ServerInfo.Name,
			Version: cfg.ServerInfo.Version,
		}, nil),
		tools: make(map[string]*localTool),
	}
	if err := r.registerBuiltins(); err != nil {
		return nil, err
	}
	return r, nil
}

// Server returns the underlying MCP server.
func (r *Registry) Server() *mcp.Server { return r.server }

// RegisterLocal registers a tool with a local execution handler and exposes
// it on the MCP server under its tool id.
func (r *Registry) RegisterLocal(tool model.Tool, handler ToolHandler) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, tool.ToolID())
	}

	id := tool.ToolID()
	r.mu.Lock()
	r.tools[id] = &localTool{
		tool:    tool,
		backend: model.NewLocalBackend(tool.Name),
		handler: handler,
	}
	r.mu.Unlock()

	sdkTool := tool.Tool
	sdkTool.Name = id
	r.server.AddTool(&sdkTool, r.sdkHandler(id))
	return nil
}

// RegisterLocalFunc is a convenience for inline tool definition.
func (r *Registry) RegisterLocalFunc(
	name, description string,
	inputSchema map[string]any,
	handler ToolHandler,
	opts ...LocalToolOption,
) error {
	cfg := applyLocalToolOptions(opts)
	tool := buildLocalTool(name, description, inputSchema, cfg)
	return r.RegisterLocal(tool, handler)
}

// ListAll returns all registered tools sorted by id.
func (r *Registry) ListAll() []model.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	tools := make([]model.Tool, 0, len(ids))
	for _, id := range ids {
		tools = append(tools, r.tools[id].tool)
	}
	return tools
}

// Execute runs a tool by id with the given arguments.
func (r *Registry) Execute(ctx context.Context, name string, args toolargs.Args) (out any, err error) {
	r.mu.RLock()
	lt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if lt.backend.Kind != model.BackendKindLocal {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked", "tool", name, "panic", p)
			out, err = nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, name, p)
		}
	}()
	if args == nil {
		args = toolargs.Args{}
	}
	return lt.handler(ctx, args)
}

// EnsureReady builds the backend client, resolvers, retrieval service and
// finder on first use. Concurrent first callers share one construction; a
// failed attempt is retried by the next caller.
func (r *Registry) EnsureReady(ctx context.Context) error {
	_, err := r.ready(ctx)
	return err
}

func (r *Registry) ready(ctx context.Context) (*deps, error) {
	r.depsMu.Lock()
	defer r.depsMu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if r.deps != nil {
		return r.deps, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := r.build()
	if err != nil {
		r.logger.Error("backend initialization failed", "error", err)
		return nil, err
	}
	r.deps = d
	return d, nil
}

func (r *Registry) build() (*deps, error) {
	app := r.app
	client, err := ragflow.NewClient(ragflow.Options{
		BaseURL:         app.RAGFlow.BaseURL,
		APIKey:          app.RAGFlow.APIKey,
		RequestTimeout:  app.RAGFlow.RequestTimeout,
		ConnectTimeout:  app.RAGFlow.ConnectTimeout,
		ReadTimeout:     app.RAGFlow.ReadTimeout,
		MaxIdleConns:    app.RAGFlow.MaxIdleConns,
		MaxConnsPerHost: app.RAGFlow.MaxConnsPerHost,
		DocPageSize:     app.RAGFlow.DocPageSize,
		Transport:       r.config.Transport,
		Logger:          r.logger,
		Observer:        r.metrics.RecordBackendRequest,
	})
	if err != nil {
		return nil, err
	}

	datasets, err := metadata.NewDatasetResolver(client, metadata.Options{
		Capacity: app.Cache.DatasetCapacity,
		TTL:      app.Cache.TTL,
		Logger:   r.logger,
		Observer: r.metrics.CacheObserver("datasets"),
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	documents, err := metadata.NewDocumentResolver(client, metadata.Options{
		Capacity: app.Cache.DocumentCapacity,
		TTL:      app.Cache.TTL,
		Logger:   r.logger,
		Observer: r.metrics.CacheObserver("documents"),
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	finder := search.NewFinder(documents, search.Config{Logger: r.logger})
	service, err := retrieval.NewService(client, datasets, documents, retrieval.Options{
		Timeout:     app.Retrieval.Timeout,
		Concurrency: app.Retrieval.Concurrency,
		OnRefresh:   finder.Clear,
		Logger:      r.logger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	client.OnClose(func() {
		datasets.Clear()
		documents.Clear()
		finder.Clear()
	})
	return &deps{
		client:    client,
		datasets:  datasets,
		documents: documents,
		service:   service,
		finder:    finder,
	}, nil
}

// Close tears down the backend client, which clears every cache and index.
// Tool calls made afterwards report ErrClosed. Close is idempotent.
func (r *Registry) Close() error {
	r.depsMu.Lock()
	defer r.depsMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.deps == nil {
		return nil
	}
	err := r.deps.client.Close()
	r.deps = nil
	return err
}

// Refresh clears the metadata caches and document indexes. It is a no-op
// before the backend components exist.
func (r *Registry) Refresh() {
	r.depsMu.Lock()
	d := r.deps
	r.depsMu.Unlock()
	if d != nil {
		d.service.Refresh()
	}
}

// RegistryStats returns registry statistics.
type RegistryStats struct {
	TotalTools      int
	LocalTools      int
	Ready           bool
	CachedDatasets  int
	CachedDocuments int
	IndexedDatasets int
}

// Stats returns registry statistics.
func (r *Registry) Stats() RegistryStats {
	var stats RegistryStats

	r.mu.RLock()
	stats.TotalTools = len(r.tools)
	for _, lt := range r.tools {
		if lt.backend.Kind == model.BackendKindLocal {
			stats.LocalTools++
		}
	}
	r.mu.RUnlock()

	r.depsMu.Lock()
	d := r.deps
	r.depsMu.Unlock()
	if d != nil {
		stats.Ready = true
		stats.CachedDatasets = d.datasets.Len()
		stats.CachedDocuments = d.documents.Len()
		stats.IndexedDatasets = d.finder.Len()
	}
	return stats
}

// HealthCheck returns nil if the registry can serve tool calls. It does not
// contact the backend; the health_check tool does that.
func (r *Registry) HealthCheck(ctx context.Context) error {
	return r.EnsureReady(ctx)
}
