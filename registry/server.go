package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolragflow/telemetry"
	"github.com/jonwraymond/toolragflow/toolargs"
)

// failer is implemented by payloads that carry their own error state.
type failer interface {
	Failed() bool
}

// ServeStdio runs the registry as an MCP server over stdio.
// Blocks until the client disconnects or ctx is cancelled.
func (r *Registry) ServeStdio(ctx context.Context) error {
	r.logger.Info("serving MCP over stdio", "server", r.config.ServerInfo.Name)
	if err := r.server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

// Handler returns an http.Handler serving the streamable HTTP MCP endpoint
// at /mcp, a liveness probe at /healthz and Prometheus metrics at /metrics.
func (r *Registry) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return r.server
	}, nil)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/*", mcpHandler)
	router.Get("/healthz", r.healthz)
	router.Handle("/metrics", telemetry.Handler(r.config.Gatherer))
	return router
}

func (r *Registry) healthz(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := r.HealthCheck(req.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sdkHandler adapts a registered tool to the MCP SDK. Arguments are decoded
// without schema validation; the result is returned as JSON text.
func (r *Registry) sdkHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		logger := r.logger.With("tool", name, "request_id", uuid.NewString())

		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, err := toolargs.Decode(raw)
		var out any
		if err == nil {
			out, err = r.Execute(ctx, name, args)
		}

		outcome := telemetry.OutcomeOK
		if f, ok := out.(failer); err != nil || (ok && f.Failed()) {
			outcome = telemetry.OutcomeError
		}
		elapsed := time.Since(start)
		r.metrics.RecordToolCall(name, outcome, elapsed)

		if err != nil {
			logger.Warn("tool call failed", "error", err, "elapsed", elapsed)
			return errorResult(err), nil
		}
		logger.Debug("tool call completed", "outcome", outcome, "elapsed", elapsed)
		return textResult(out), nil
	}
}

func textResult(v any) *mcp.CallToolResult {
	text, err := encodeText(v)
	if err != nil {
		return errorResult(fmt.Errorf("%w: encoding result: %v", ErrExecutionFailed, err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	text, _ := encodeText(map[string]string{"error": err.Error()})
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// encodeText renders v as compact JSON, leaving <, > and & unescaped.
func encodeText(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
