package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jonwraymond/toolragflow/config"
	"github.com/jonwraymond/toolragflow/telemetry"
	"github.com/jonwraymond/toolragflow/toolargs"
)

// fakeRAGFlow serves a small RAGFlow deployment with two datasets.
type fakeRAGFlow struct {
	mu            sync.Mutex
	unhealthy     bool
	lastRetrieval map[string]any
	documentCalls atomic.Int32
}

var fakeDatasets = []map[string]any{
	{"id": "ds1", "name": "Handbooks", "description": "company handbooks"},
	{"id": "ds2", "name": "Specs", "description": ""},
}

var fakeDocuments = map[string][]map[string]any{
	"ds1": {
		{"id": "doc1", "name": "employee-handbook.pdf", "type": "pdf", "location": "employee-handbook.pdf", "size": 2048},
		{"id": "doc2", "name": "travel-policy.docx", "type": "doc", "location": "travel-policy.docx", "size": 512},
	},
	"ds2": {
		{"id": "doc3", "name": "api-spec.md", "type": "doc", "location": "api-spec.md", "size": 128},
	},
}

func (f *fakeRAGFlow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unhealthy {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/datasets":
		id := r.URL.Query().Get("id")
		out := []any{}
		for _, ds := range fakeDatasets {
			if id == "" || ds["id"] == id {
				out = append(out, ds)
			}
		}
		writeJSON(w, map[string]any{"code": 0, "data": out})
	case strings.HasPrefix(path, "/datasets/") && strings.HasSuffix(path, "/documents"):
		f.documentCalls.Add(1)
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/datasets/"), "/documents")
		docs := fakeDocuments[id]
		writeJSON(w, map[string]any{"code": 0, "data": map[string]any{"docs": docs, "total": len(docs)}})
	case path == "/retrieval":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastRetrieval = body
		writeJSON(w, map[string]any{"code": 0, "data": map[string]any{
			"chunks": []any{
				map[string]any{"id": "c1", "content": "Vacation is 25 days.", "dataset_id": "ds1", "document_id": "doc1", "similarity": 0.9},
				map[string]any{"id": "c2", "content": "Book trains & hotels <early>.", "kb_id": "ds1", "doc_id": "doc2", "similarity": 0.7},
			},
			"page":      1,
			"page_size": 10,
			"total":     2,
		}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRAGFlow) setUnhealthy(v bool) {
	f.mu.Lock()
	f.unhealthy = v
	f.mu.Unlock()
}

func (f *fakeRAGFlow) retrievalBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRetrieval
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.RAGFlow.BaseURL = baseURL
	cfg.RAGFlow.APIKey = "test-key"
	return cfg
}

func newTestRegistry(t *testing.T, fake *fakeRAGFlow) (*Registry, *telemetry.Metrics) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(promRegistry)
	reg, err := New(Config{
		App:      testConfig(srv.URL),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics,
		Gatherer: promRegistry,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg, metrics
}

func connect(t *testing.T, reg *Registry) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := reg.Server().Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (map[string]any, *mcp.CallToolResult) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s failed: %v", name, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text.Text)
	}
	return payload, res
}

func TestNew_RequiresAppConfig(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNew_RegistersBuiltins(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})

	tools := reg.ListAll()
	want := []string{ToolFindDocuments, ToolHealthCheck, ToolListDatasets, ToolRAGFlowRetrieval, ToolSearchDocuments}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if tool.Name != want[i] {
			t.Errorf("expected tool %d to be %s, got %s", i, want[i], tool.Name)
		}
		if tool.Version != config.DefaultVersion {
			t.Errorf("expected version %s on %s, got %s", config.DefaultVersion, tool.Name, tool.Version)
		}
		if len(tool.Tags) == 0 || tool.Tags[0] == "" {
			t.Errorf("expected tags on %s", tool.Name)
		}
	}

	stats := reg.Stats()
	if stats.TotalTools != 5 || stats.LocalTools != 5 {
		t.Errorf("expected 5 local tools, got %+v", stats)
	}
	if stats.Ready {
		t.Error("expected backend components to be built lazily")
	}
}

func TestRegisterLocal(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})

	callCount := 0
	handler := func(ctx context.Context, args toolargs.Args) (any, error) {
		callCount++
		msg, err := args.String("message", "")
		if err != nil {
			return nil, err
		}
		return map[string]any{"echo": msg}, nil
	}

	err := reg.RegisterLocalFunc(
		"echo",
		"Echoes back input",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
		},
		handler,
		WithNamespace("test"),
		WithTags("echo", "utility"),
	)
	if err != nil {
		t.Fatalf("RegisterLocalFunc failed: %v", err)
	}

	result, err := reg.Execute(context.Background(), "test:echo", toolargs.Args{"message": "hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected handler to be called once, got %d", callCount)
	}
	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected result to be map[string]any, got %T", result)
	}
	if resultMap["echo"] != "hello" {
		t.Errorf("expected echo='hello', got %v", resultMap["echo"])
	}
}

func TestRegisterLocal_InvalidTool(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	handler := func(ctx context.Context, args toolargs.Args) (any, error) { return nil, nil }

	if err := reg.RegisterLocalFunc("", "nameless", map[string]any{"type": "object"}, handler); err == nil {
		t.Fatal("expected error for tool without a name")
	}
	if err := reg.RegisterLocalFunc("noop", "no handler", map[string]any{"type": "object"}, nil); !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestExecute_NotFound(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})

	_, err := reg.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestExecute_RecoversPanics(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	if err := reg.RegisterLocalFunc("boom", "panics", map[string]any{"type": "object"},
		func(ctx context.Context, args toolargs.Args) (any, error) { panic("kaboom") }); err != nil {
		t.Fatalf("RegisterLocalFunc failed: %v", err)
	}

	_, err := reg.Execute(context.Background(), "boom", nil)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed, got %v", err)
	}
}

func TestListToolsOverMCP(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{ToolSearchDocuments, ToolRAGFlowRetrieval, ToolListDatasets, ToolHealthCheck, ToolFindDocuments} {
		if !names[name] {
			t.Errorf("expected tool %s to be listed", name)
		}
	}
}

func TestSearchDocuments(t *testing.T) {
	fake := &fakeRAGFlow{}
	reg, metrics := newTestRegistry(t, fake)
	cs := connect(t, reg)

	payload, res := callTool(t, cs, ToolSearchDocuments, map[string]any{
		"question":    "how many vacation days?",
		"dataset_ids": "ds1",
		"page_size":   "5",
	})
	if res.IsError {
		t.Fatalf("expected success, got %v", payload)
	}
	if payload["error"] != nil {
		t.Fatalf("expected no error, got %v", payload["error"])
	}

	chunks, ok := payload["chunks"].([]any)
	if !ok || len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", payload["chunks"])
	}
	first := chunks[0].(map[string]any)
	if first["dataset_name"] != "Handbooks" {
		t.Errorf("expected dataset_name Handbooks, got %v", first["dataset_name"])
	}
	if first["document_name"] != "employee-handbook.pdf" {
		t.Errorf("expected document_name employee-handbook.pdf, got %v", first["document_name"])
	}
	second := chunks[1].(map[string]any)
	if second["document_name"] != "travel-policy.docx" {
		t.Errorf("expected legacy ids to be enriched, got %v", second["document_name"])
	}

	body := fake.retrievalBody()
	if body["page_size"] != float64(5) {
		t.Errorf("expected page_size 5 sent to backend, got %v", body["page_size"])
	}
	ids, _ := body["dataset_ids"].([]any)
	if len(ids) != 1 || ids[0] != "ds1" {
		t.Errorf("expected dataset_ids [ds1], got %v", body["dataset_ids"])
	}

	if got := testutil.ToFloat64(metrics.ToolCalls.WithLabelValues(ToolSearchDocuments, telemetry.OutcomeOK)); got != 1 {
		t.Errorf("expected 1 ok search call, got %v", got)
	}
}

func TestRAGFlowRetrievalAlias(t *testing.T) {
	fake := &fakeRAGFlow{}
	reg, _ := newTestRegistry(t, fake)
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolRAGFlowRetrieval, map[string]any{"question": "trains"})
	chunks, _ := payload["chunks"].([]any)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", payload["chunks"])
	}
	info := payload["query_info"].(map[string]any)
	if info["dataset_count"] != float64(2) {
		t.Errorf("expected search over both listed datasets, got %v", info["dataset_count"])
	}
}

func TestSearchDocuments_LargePageSizeAndTopK(t *testing.T) {
	fake := &fakeRAGFlow{}
	reg, _ := newTestRegistry(t, fake)
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolSearchDocuments, map[string]any{
		"question":  "q",
		"page_size": 200,
		"top_k":     2048,
	})
	if payload["error"] != nil {
		t.Fatalf("expected no error, got %v", payload["error"])
	}
	body := fake.retrievalBody()
	if body["page_size"] != float64(200) {
		t.Errorf("expected page_size 200 sent to backend, got %v", body["page_size"])
	}
	if body["top_k"] != float64(2048) {
		t.Errorf("expected top_k 2048 sent to backend, got %v", body["top_k"])
	}
}

func TestSearchDocuments_TextIsNotHTMLEscaped(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	_, res := callTool(t, cs, ToolSearchDocuments, map[string]any{"question": "hotels"})
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "Book trains & hotels <early>.") {
		t.Errorf("expected raw chunk text in result, got %s", text)
	}
	if strings.Contains(text, `\u003c`) || strings.Contains(text, `\u0026`) {
		t.Errorf("expected no HTML escapes, got %s", text)
	}
	if strings.HasSuffix(text, "\n") {
		t.Error("expected no trailing newline")
	}
}

func TestErrorResult_NotHTMLEscaped(t *testing.T) {
	res := errorResult(errors.New("bad <input> & more"))
	if !res.IsError {
		t.Fatal("expected IsError")
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if text != `{"error":"bad <input> & more"}` {
		t.Errorf("expected unescaped error payload, got %s", text)
	}
}

func TestSearchDocuments_InvalidArguments(t *testing.T) {
	reg, metrics := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	payload, res := callTool(t, cs, ToolSearchDocuments, map[string]any{"question": "q", "page_size": 0})
	if res.IsError {
		t.Fatal("expected a structured result, not a tool error")
	}
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "page_size") {
		t.Errorf("expected page_size error, got %q", msg)
	}
	if chunks, ok := payload["chunks"].([]any); !ok || len(chunks) != 0 {
		t.Errorf("expected empty chunks, got %v", payload["chunks"])
	}
	if got := testutil.ToFloat64(metrics.ToolCalls.WithLabelValues(ToolSearchDocuments, telemetry.OutcomeError)); got != 1 {
		t.Errorf("expected 1 failed search call, got %v", got)
	}
}

func TestListDatasets(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolListDatasets, nil)
	if payload["total"] != float64(2) {
		t.Fatalf("expected total 2, got %v", payload["total"])
	}
	datasets := payload["datasets"].([]any)
	if datasets[0].(map[string]any)["name"] != "Handbooks" {
		t.Errorf("expected Handbooks first, got %v", datasets[0])
	}
	if got := reg.Stats().CachedDatasets; got != 2 {
		t.Errorf("expected listed datasets to prime the cache, got %d", got)
	}
}

func TestHealthCheck(t *testing.T) {
	fake := &fakeRAGFlow{}
	reg, _ := newTestRegistry(t, fake)
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolHealthCheck, nil)
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload)
	}
	if payload["datasets_count"] != float64(2) {
		t.Errorf("expected datasets_count 2, got %v", payload["datasets_count"])
	}
	if payload["backend"] != "RAGFlow" {
		t.Errorf("expected backend RAGFlow, got %v", payload["backend"])
	}

	fake.setUnhealthy(true)
	payload, res := callTool(t, cs, ToolHealthCheck, nil)
	if res.IsError {
		t.Fatal("expected a structured health result")
	}
	if payload["status"] != "error" {
		t.Fatalf("expected status error, got %v", payload)
	}
	if payload["error"] == nil {
		t.Error("expected error detail")
	}
}

func TestHealthCheck_ClientInitFailure(t *testing.T) {
	cfg := testConfig("ftp://ragflow")
	reg, err := New(Config{App: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	out, err := reg.Execute(context.Background(), ToolHealthCheck, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	f, ok := out.(failer)
	if !ok || !f.Failed() {
		t.Fatalf("expected failed health, got %+v", out)
	}
}

func TestFindDocuments(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolFindDocuments, map[string]any{"query": "handbook"})
	if payload["error"] != nil {
		t.Fatalf("expected no error, got %v", payload["error"])
	}
	docs := payload["documents"].([]any)
	if len(docs) == 0 {
		t.Fatal("expected at least one document")
	}
	top := docs[0].(map[string]any)
	if top["document_id"] != "doc1" || top["dataset_id"] != "ds1" {
		t.Errorf("expected doc1 in ds1 first, got %v", top)
	}

	payload, _ = callTool(t, cs, ToolFindDocuments, map[string]any{"dataset_ids": []string{"ds2"}})
	if payload["total"] != float64(1) {
		t.Errorf("expected 1 document listed in ds2, got %v", payload["total"])
	}
	if got := reg.Stats().IndexedDatasets; got != 2 {
		t.Errorf("expected 2 indexed datasets, got %d", got)
	}
}

func TestFindDocuments_InvalidLimit(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)

	payload, _ := callTool(t, cs, ToolFindDocuments, map[string]any{"limit": 500})
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "limit") {
		t.Errorf("expected limit error, got %q", msg)
	}
}

func TestFindDocuments_ForceRefresh(t *testing.T) {
	fake := &fakeRAGFlow{}
	reg, _ := newTestRegistry(t, fake)
	cs := connect(t, reg)

	callTool(t, cs, ToolFindDocuments, map[string]any{"dataset_ids": "ds1"})
	callTool(t, cs, ToolFindDocuments, map[string]any{"dataset_ids": "ds1"})
	if got := fake.documentCalls.Load(); got != 1 {
		t.Fatalf("expected cached listing, got %d calls", got)
	}
	callTool(t, cs, ToolFindDocuments, map[string]any{"dataset_ids": "ds1", "force_refresh": true})
	if got := fake.documentCalls.Load(); got != 2 {
		t.Fatalf("expected refetch after force refresh, got %d calls", got)
	}
}

func TestEnsureReady_Concurrent(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})

	var wg sync.WaitGroup
	results := make([]*deps, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := reg.ready(context.Background())
			if err != nil {
				t.Errorf("ready failed: %v", err)
				return
			}
			results[i] = d
		}(i)
	}
	wg.Wait()

	for i, d := range results {
		if d != results[0] {
			t.Fatalf("expected shared components, result %d differs", i)
		}
	}
	if !reg.Stats().Ready {
		t.Error("expected registry to be ready")
	}
}

func TestEnsureReady_RetriesAfterFailure(t *testing.T) {
	cfg := testConfig("http://ragflow.invalid")
	cfg.RAGFlow.APIKey = ""
	reg, err := New(Config{App: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	if err := reg.EnsureReady(context.Background()); err == nil {
		t.Fatal("expected failure without an API key")
	}
	cfg.RAGFlow.APIKey = "now-set"
	if err := reg.EnsureReady(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestCloseAndRefresh(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	ctx := context.Background()

	if _, err := reg.Execute(ctx, ToolListDatasets, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := reg.Stats().CachedDatasets; got != 2 {
		t.Fatalf("expected 2 cached datasets, got %d", got)
	}
	reg.Refresh()
	if got := reg.Stats().CachedDatasets; got != 0 {
		t.Fatalf("expected refresh to clear the cache, got %d", got)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := reg.Execute(ctx, ToolListDatasets, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if reg.Stats().Ready {
		t.Error("expected closed registry to report not ready")
	}
}

func TestClosedRegistryReturnsToolError(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	cs := connect(t, reg)
	_ = reg.Close()

	payload, res := callTool(t, cs, ToolListDatasets, nil)
	if !res.IsError {
		t.Fatal("expected tool error after Close")
	}
	if msg, _ := payload["error"].(string); !strings.Contains(msg, ErrClosed.Error()) {
		t.Errorf("expected closed error, got %q", msg)
	}
}

func TestHandler(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "http-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
	if err != nil {
		t.Fatalf("streamable connect failed: %v", err)
	}
	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: ToolListDatasets})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got %+v", res.Content)
	}
	_ = cs.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "toolragflow_tool_calls_total") {
		t.Errorf("expected tool call metrics, got:\n%s", body)
	}
	if !strings.Contains(string(body), "toolragflow_backend_requests_total") {
		t.Errorf("expected backend request metrics, got:\n%s", body)
	}
}

func TestHandler_HealthzAfterClose(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeRAGFlow{})
	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()
	_ = reg.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after Close, got %d", resp.StatusCode)
	}
}
