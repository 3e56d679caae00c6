package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/toolragflow/metadata"
	"github.com/jonwraymond/toolragflow/ragflow"
)

// Service defaults.
const (
	DefaultTimeout     = 120 * time.Second
	DefaultConcurrency = 8
)

// Backend is the part of the RAGFlow client the service uses.
// *ragflow.Client satisfies it.
type Backend interface {
	ListDatasets(ctx context.Context, opts ragflow.ListOptions) []ragflow.Dataset
	DatasetsPage(ctx context.Context, opts ragflow.ListOptions) ([]ragflow.Dataset, error)
	Retrieve(ctx context.Context, req ragflow.RetrievalRequest) (*ragflow.RetrievalResponse, error)
	APIURL() string
}

// DatasetResolver resolves dataset ids. *metadata.DatasetResolver satisfies it.
type DatasetResolver interface {
	Get(ctx context.Context, id string) (ragflow.Dataset, bool)
	Prime(datasets ...ragflow.Dataset)
	Clear()
}

// DocumentResolver resolves dataset ids to document indexes.
// *metadata.DocumentResolver satisfies it.
type DocumentResolver interface {
	Get(ctx context.Context, datasetID string) metadata.DocumentIndex
	Clear()
}

// Options configures a Service.
type Options struct {
	// Timeout bounds one whole Search, on top of the per-request timeouts
	// of the client. Default: 120s
	Timeout time.Duration
	// Concurrency bounds parallel chunk enrichment. Default: 8
	Concurrency int
	// OnRefresh runs after the resolver caches are cleared by a
	// force-refresh search. Use it to drop other derived state.
	OnRefresh func()
	// Logger receives diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// Service runs searches against one backend.
type Service struct {
	backend   Backend
	datasets  DatasetResolver
	documents DocumentResolver
	opts      Options
	logger    *slog.Logger
}

// NewService wires a Service. All three collaborators are required.
func NewService(backend Backend, datasets DatasetResolver, documents DocumentResolver, opts Options) (*Service, error) {
	if backend == nil || datasets == nil || documents == nil {
		return nil, errors.New("retrieval: backend and resolvers are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		backend:   backend,
		datasets:  datasets,
		documents: documents,
		opts:      opts,
		logger:    opts.Logger,
	}, nil
}

// Search runs one retrieval and returns its structured result.
func (s *Service) Search(ctx context.Context, q Query) (res Result) {
	start := time.Now()
	datasetIDs := q.DatasetIDs

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search panicked", "panic", r, "stack", string(debug.Stack()))
			res = failed(q, datasetIDs, fmt.Sprintf("Error during search: %v", r))
		}
	}()

	if err := q.Validate(); err != nil {
		return failed(q, datasetIDs, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	// ResolvingScope
	var listed []ragflow.Dataset
	if len(datasetIDs) == 0 {
		listed = s.backend.ListDatasets(ctx, ragflow.ListOptions{})
		for _, ds := range listed {
			datasetIDs = append(datasetIDs, ds.ID)
		}
		if len(datasetIDs) == 0 {
			s.logger.Warn("no datasets available for search", "api_url", s.backend.APIURL())
			out := failed(q, nil, ErrorNoDatasets)
			out.APIURL = s.backend.APIURL()
			return out
		}
	}

	if q.ForceRefresh {
		s.Refresh()
	}
	s.datasets.Prime(listed...)

	// Requesting
	resp, err := s.backend.Retrieve(ctx, ragflow.RetrievalRequest{
		Question:               q.Question,
		DatasetIDs:             datasetIDs,
		DocumentIDs:            q.DocumentIDs,
		Page:                   q.Page,
		PageSize:               q.PageSize,
		SimilarityThreshold:    q.SimilarityThreshold,
		VectorSimilarityWeight: q.VectorSimilarityWeight,
		Keyword:                q.Keyword,
		TopK:                   q.TopK,
		RerankID:               q.RerankID,
	})
	if err != nil {
		s.logger.Error("retrieval failed", "error", err, "datasets", len(datasetIDs))
		var envErr *ragflow.EnvelopeError
		if errors.As(err, &envErr) {
			return failed(q, datasetIDs, envErr.Message)
		}
		return failed(q, datasetIDs, err.Error())
	}

	if len(resp.Chunks) == 0 {
		return Result{
			Chunks:     []map[string]any{},
			Pagination: Pagination{Page: q.Page, PageSize: q.PageSize},
			QueryInfo:  newQueryInfo(q, datasetIDs),
			Message:    MessageNoDocuments,
		}
	}

	// Enriching
	s.enrichAll(ctx, resp.Chunks)

	// Done
	res = Result{
		Chunks:     resp.Chunks,
		Pagination: paginate(q, resp),
		QueryInfo:  newQueryInfo(q, datasetIDs),
	}
	s.logger.Info("search completed",
		"chunks", len(res.Chunks),
		"total", res.Pagination.TotalChunks,
		"datasets", len(datasetIDs),
		"elapsed", time.Since(start))
	return res
}

// Refresh clears every cached piece of metadata.
func (s *Service) Refresh() {
	s.datasets.Clear()
	s.documents.Clear()
	if s.opts.OnRefresh != nil {
		s.opts.OnRefresh()
	}
	s.logger.Info("metadata caches cleared")
}

// ListDatasets returns the first page of datasets. Listing is best effort;
// a failing backend yields an empty list.
func (s *Service) ListDatasets(ctx context.Context) DatasetList {
	datasets := s.backend.ListDatasets(ctx, ragflow.ListOptions{})
	s.datasets.Prime(datasets...)
	if datasets == nil {
		datasets = []ragflow.Dataset{}
	}
	return DatasetList{Datasets: datasets, Total: len(datasets)}
}

// Health probes the backend with a dataset listing.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Backend: "RAGFlow", APIURL: s.backend.APIURL()}
	datasets, err := s.backend.DatasetsPage(ctx, ragflow.ListOptions{})
	if err != nil {
		h.Status = StatusError
		h.Connection = "failed"
		h.Error = err.Error()
		h.Message = "RAGFlow backend is not reachable or rejected the request"
		return h
	}
	n := len(datasets)
	h.Status = StatusOK
	h.Connection = "connected"
	h.DatasetsCount = &n
	h.Message = "RAGFlow backend is reachable"
	return h
}

func paginate(q Query, resp *ragflow.RetrievalResponse) Pagination {
	p := Pagination{Page: q.Page, PageSize: q.PageSize, TotalChunks: len(resp.Chunks)}
	if resp.Page != nil && *resp.Page > 0 {
		p.Page = *resp.Page
	}
	if resp.PageSize != nil && *resp.PageSize > 0 {
		p.PageSize = *resp.PageSize
	}
	if resp.Total != nil && *resp.Total >= 0 {
		p.TotalChunks = *resp.Total
	}
	p.TotalPages = TotalPages(p.TotalChunks, p.PageSize)
	return p
}

// enrichAll decorates chunks in place. Each worker owns one chunk, so order
// is preserved without further coordination.
func (s *Service) enrichAll(ctx context.Context, chunks []map[string]any) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, chunk := range chunks {
		g.Go(func() error {
			s.enrich(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) enrich(ctx context.Context, chunk map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("chunk enrichment panicked", "panic", r)
		}
	}()
	if ctx.Err() != nil {
		return
	}

	datasetID := firstField(chunk, "dataset_id", "kb_id")
	if datasetID == "" {
		return
	}
	if ds, ok := s.datasets.Get(ctx, datasetID); ok && ds.Name != "" {
		chunk["dataset_name"] = ds.Name
	}

	documentID := firstField(chunk, "document_id", "doc_id")
	if documentID == "" {
		return
	}
	if doc, ok := s.documents.Get(ctx, datasetID)[documentID]; ok {
		if doc.Name != "" {
			chunk["document_name"] = doc.Name
		}
		chunk["document_metadata"] = doc
	}
}

func firstField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := ragflow.StringField(m, key); v != "" {
			return v
		}
	}
	return ""
}
