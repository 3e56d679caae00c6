package ragflow

import (
	"context"
	"fmt"
	"net/http"
)

// RetrievalRequest is the body of POST /retrieval.
type RetrievalRequest struct {
	Question               string   `json:"question"`
	DatasetIDs             []string `json:"dataset_ids"`
	DocumentIDs            []string `json:"document_ids,omitempty"`
	Page                   int      `json:"page"`
	PageSize               int      `json:"page_size"`
	SimilarityThreshold    float64  `json:"similarity_threshold"`
	VectorSimilarityWeight float64  `json:"vector_similarity_weight"`
	Keyword                bool     `json:"keyword"`
	TopK                   int      `json:"top_k"`
	RerankID               string   `json:"rerank_id,omitempty"`
}

// RetrievalResponse is the data block of a successful retrieval. Pagination
// fields are nil when the backend omitted them.
type RetrievalResponse struct {
	Chunks   []map[string]any
	Page     *int
	PageSize *int
	Total    *int
}

// Retrieve issues one retrieval call. A non-zero envelope code is returned as
// *EnvelopeError; a data block that is not an object as ErrMalformedResponse.
func (c *Client) Retrieve(ctx context.Context, req RetrievalRequest) (*RetrievalResponse, error) {
	env, err := c.call(request{ctx: ctx, method: http.MethodPost, path: "/retrieval", body: req})
	if err != nil {
		return nil, err
	}
	return retrievalFromData(env.Data)
}

func retrievalFromData(data any) (*RetrievalResponse, error) {
	out := &RetrievalResponse{}
	if data == nil {
		return out, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: retrieval data is %T, want object", ErrMalformedResponse, data)
	}

	if items, ok := m["chunks"].([]any); ok {
		out.Chunks = make([]map[string]any, 0, len(items))
		for _, item := range items {
			if chunk, ok := item.(map[string]any); ok {
				out.Chunks = append(out.Chunks, chunk)
				continue
			}
			out.Chunks = append(out.Chunks, map[string]any{"content": item})
		}
	}
	out.Page = optionalInt(m["page"])
	out.PageSize = optionalInt(m["page_size"])
	out.Total = optionalInt(m["total"])
	return out, nil
}

func optionalInt(v any) *int {
	n, ok := intValue(v)
	if !ok {
		return nil
	}
	return &n
}
