package registry

import (
	"context"
	"fmt"

	"github.com/jonwraymond/toolragflow/ragflow"
	"github.com/jonwraymond/toolragflow/retrieval"
	"github.com/jonwraymond/toolragflow/search"
	"github.com/jonwraymond/toolragflow/toolargs"
)

// Built-in tool names.
const (
	ToolSearchDocuments  = "search_documents"
	ToolRAGFlowRetrieval = "ragflow_retrieval"
	ToolListDatasets     = "list_datasets"
	ToolHealthCheck      = "health_check"
	ToolFindDocuments    = "find_documents"
)

// MaxFindLimit bounds the limit argument of find_documents.
const MaxFindLimit = 100

// FindResult is the payload of the find_documents tool.
type FindResult struct {
	Documents []search.Match `json:"documents"`
	Total     int            `json:"total"`
	Error     string         `json:"error,omitempty"`
}

// Failed reports whether the lookup ended in an error.
func (f FindResult) Failed() bool { return f.Error != "" }

func (r *Registry) registerBuiltins() error {
	version := WithVersion(r.config.ServerInfo.Version)
	empty := map[string]any{"type": "object", "properties": map[string]any{}}

	for _, name := range []string{ToolSearchDocuments, ToolRAGFlowRetrieval} {
		if err := r.RegisterLocalFunc(name,
			"Search RAGFlow datasets for chunks relevant to a question. Results can be narrowed "+
				"to specific datasets or documents and tuned with similarity and paging options.",
			searchSchema(), r.searchDocuments,
			WithTags("ragflow", "retrieval", "search"), version); err != nil {
			return err
		}
	}
	if err := r.RegisterLocalFunc(ToolListDatasets,
		"List the RAGFlow datasets available to this API key.",
		empty, r.listDatasets, WithTags("ragflow", "datasets"), version); err != nil {
		return err
	}
	if err := r.RegisterLocalFunc(ToolHealthCheck,
		"Check that the RAGFlow backend is reachable and accepts the configured API key.",
		empty, r.healthCheck, WithTags("ragflow", "health"), version); err != nil {
		return err
	}
	return r.RegisterLocalFunc(ToolFindDocuments,
		"Find documents by name, file type or location so their ids can be passed to "+
			"search_documents. An empty query lists documents in name order.",
		findSchema(), r.findDocuments, WithTags("ragflow", "documents", "search"), version)
}

func searchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":                 stringProp("The question to search for"),
			"dataset_ids":              idsProp("Dataset ids to search; all datasets when omitted"),
			"document_ids":             idsProp("Document ids to restrict the search to"),
			"page":                     intProp("Page number, starting at 1", 1, 0, retrieval.DefaultPage),
			"page_size":                intProp("Chunks per page", 1, 0, retrieval.DefaultPageSize),
			"similarity_threshold":     unitProp("Minimum similarity score", retrieval.DefaultSimilarityThreshold),
			"vector_similarity_weight": unitProp("Weight of vector against keyword similarity", retrieval.DefaultVectorSimilarityWeight),
			"keyword":                  boolProp("Also run keyword matching"),
			"top_k":                    intProp("Candidates considered before ranking", 1, 0, retrieval.DefaultTopK),
			"rerank_id":                stringProp("Rerank model id"),
			"force_refresh":            boolProp("Drop cached dataset and document metadata first"),
		},
		"required": []string{"question"},
	}
}

func findSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":         stringProp("Words to match against document names, types and locations"),
			"dataset_ids":   idsProp("Datasets to look in; all datasets when omitted"),
			"limit":         intProp("Maximum number of documents returned", 1, MaxFindLimit, search.DefaultLimit),
			"force_refresh": boolProp("Drop cached document listings first"),
		},
	}
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "default": false, "description": description}
}

// intProp describes an integer; a zero maximum leaves it unbounded.
func intProp(description string, minimum, maximum, def int) map[string]any {
	p := map[string]any{
		"type":        "integer",
		"minimum":     minimum,
		"default":     def,
		"description": description,
	}
	if maximum > 0 {
		p["maximum"] = maximum
	}
	return p
}

func unitProp(description string, def float64) map[string]any {
	return map[string]any{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"default":     def,
		"description": description,
	}
}

func idsProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

func (r *Registry) searchDocuments(ctx context.Context, args toolargs.Args) (any, error) {
	q, err := retrieval.ParseQuery(args)
	if err != nil {
		return retrieval.Rejected(err), nil
	}
	d, err := r.ready(ctx)
	if err != nil {
		return nil, err
	}
	return d.service.Search(ctx, q), nil
}

func (r *Registry) listDatasets(ctx context.Context, _ toolargs.Args) (any, error) {
	d, err := r.ready(ctx)
	if err != nil {
		return nil, err
	}
	return d.service.ListDatasets(ctx), nil
}

func (r *Registry) healthCheck(ctx context.Context, _ toolargs.Args) (any, error) {
	d, err := r.ready(ctx)
	if err != nil {
		return retrieval.Health{
			Status:  retrieval.StatusError,
			Backend: "RAGFlow",
			APIURL:  r.app.RAGFlow.BaseURL,
			Error:   err.Error(),
			Message: "RAGFlow client could not be initialized",
		}, nil
	}
	return d.service.Health(ctx), nil
}

func (r *Registry) findDocuments(ctx context.Context, args toolargs.Args) (any, error) {
	text, err := args.String("query", "")
	if err != nil {
		return FindResult{Documents: []search.Match{}, Error: err.Error()}, nil
	}
	limit, err := args.Int("limit", search.DefaultLimit)
	if err == nil && (limit < 1 || limit > MaxFindLimit) {
		err = fmt.Errorf("%w: limit must be between 1 and %d, got %d", toolargs.ErrInvalidArgument, MaxFindLimit, limit)
	}
	if err != nil {
		return FindResult{Documents: []search.Match{}, Error: err.Error()}, nil
	}
	refresh, err := args.Bool("force_refresh", false)
	if err != nil {
		return FindResult{Documents: []search.Match{}, Error: err.Error()}, nil
	}

	d, err := r.ready(ctx)
	if err != nil {
		return nil, err
	}
	if refresh {
		d.service.Refresh()
	}

	datasetIDs := args.IDs("dataset_ids")
	if len(datasetIDs) == 0 {
		listed := d.client.ListDatasets(ctx, ragflow.ListOptions{})
		d.datasets.Prime(listed...)
		for _, ds := range listed {
			datasetIDs = append(datasetIDs, ds.ID)
		}
	}
	if len(datasetIDs) == 0 {
		return FindResult{Documents: []search.Match{}, Error: retrieval.ErrorNoDatasets}, nil
	}

	matches, err := d.finder.Find(ctx, datasetIDs, text, limit)
	if err != nil {
		return FindResult{Documents: []search.Match{}, Error: err.Error()}, nil
	}
	if matches == nil {
		matches = []search.Match{}
	}
	return FindResult{Documents: matches, Total: len(matches)}, nil
}
