package retrieval

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/toolragflow/toolargs"
)

// Query defaults.
const (
	DefaultPage                   = 1
	DefaultPageSize               = 10
	DefaultSimilarityThreshold    = 0.2
	DefaultVectorSimilarityWeight = 0.3
	DefaultTopK                   = 1024
)

// ErrInvalidQuery is wrapped by every query validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// Query is one normalized retrieval request.
type Query struct {
	Question               string
	DatasetIDs             []string
	DocumentIDs            []string
	Page                   int
	PageSize               int
	SimilarityThreshold    float64
	VectorSimilarityWeight float64
	Keyword                bool
	TopK                   int
	RerankID               string
	ForceRefresh           bool
}

// NewQuery returns a query for question with every other field at its default.
func NewQuery(question string) Query {
	return Query{
		Question:               question,
		Page:                   DefaultPage,
		PageSize:               DefaultPageSize,
		SimilarityThreshold:    DefaultSimilarityThreshold,
		VectorSimilarityWeight: DefaultVectorSimilarityWeight,
		TopK:                   DefaultTopK,
	}
}

// ParseQuery builds a Query from a tool-call argument bag, applying defaults
// for absent arguments and validating the result.
func ParseQuery(args toolargs.Args) (Query, error) {
	var err error
	q := NewQuery("")

	if q.Question, err = args.String("question", ""); err != nil {
		return Query{}, err
	}
	q.DatasetIDs = args.IDs("dataset_ids")
	q.DocumentIDs = args.IDs("document_ids")
	if q.Page, err = args.Int("page", DefaultPage); err != nil {
		return Query{}, err
	}
	if q.PageSize, err = args.Int("page_size", DefaultPageSize); err != nil {
		return Query{}, err
	}
	if q.SimilarityThreshold, err = args.Float("similarity_threshold", DefaultSimilarityThreshold); err != nil {
		return Query{}, err
	}
	if q.VectorSimilarityWeight, err = args.Float("vector_similarity_weight", DefaultVectorSimilarityWeight); err != nil {
		return Query{}, err
	}
	if q.Keyword, err = args.Bool("keyword", false); err != nil {
		return Query{}, err
	}
	if q.TopK, err = args.Int("top_k", DefaultTopK); err != nil {
		return Query{}, err
	}
	if q.RerankID, err = args.String("rerank_id", ""); err != nil {
		return Query{}, err
	}
	if q.ForceRefresh, err = args.Bool("force_refresh", false); err != nil {
		return Query{}, err
	}

	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks that every field is in range.
func (q Query) Validate() error {
	switch {
	case q.Question == "":
		return fmt.Errorf("%w: question is required", ErrInvalidQuery)
	case q.Page < 1:
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, q.Page)
	case q.PageSize < 1:
		return fmt.Errorf("%w: page_size must be >= 1, got %d", ErrInvalidQuery, q.PageSize)
	case q.SimilarityThreshold < 0 || q.SimilarityThreshold > 1:
		return fmt.Errorf("%w: similarity_threshold must be between 0 and 1, got %v", ErrInvalidQuery, q.SimilarityThreshold)
	case q.VectorSimilarityWeight < 0 || q.VectorSimilarityWeight > 1:
		return fmt.Errorf("%w: vector_similarity_weight must be between 0 and 1, got %v", ErrInvalidQuery, q.VectorSimilarityWeight)
	case q.TopK < 1:
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidQuery, q.TopK)
	}
	return nil
}
