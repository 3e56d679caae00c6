package metadata

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolragflow/ragflow"
)

// DocumentIndex maps document id to document record for one dataset. Indexes
// returned by DocumentResolver are shared and must not be modified.
type DocumentIndex map[string]ragflow.Document

// DocumentSource lists every document of a dataset. *ragflow.Client
// satisfies it.
type DocumentSource interface {
	ListDocuments(ctx context.Context, datasetID string) ([]ragflow.Document, error)
}

// DocumentResolver resolves a dataset id to the index of its documents. The
// whole index is cached as one unit.
type DocumentResolver struct {
	source DocumentSource
	r      *resolver[DocumentIndex]
}

// NewDocumentResolver creates a resolver backed by source.
func NewDocumentResolver(source DocumentSource, opts Options) (*DocumentResolver, error) {
	if source == nil {
		return nil, errors.New("metadata: document source is required")
	}
	r, err := newResolver[DocumentIndex]("documents", opts.withDefaults(DefaultDocumentCapacity))
	if err != nil {
		return nil, err
	}
	return &DocumentResolver{source: source, r: r}, nil
}

// Get returns the document index of a dataset. It never returns nil; a
// failed listing yields an empty index that is not cached.
func (d *DocumentResolver) Get(ctx context.Context, datasetID string) DocumentIndex {
	idx, ok := d.r.get(ctx, datasetID, d.fetch)
	if !ok || idx == nil {
		return DocumentIndex{}
	}
	return idx
}

func (d *DocumentResolver) fetch(ctx context.Context, datasetID string) (DocumentIndex, bool, error) {
	docs, err := d.source.ListDocuments(ctx, datasetID)
	if err != nil {
		return nil, false, err
	}
	idx := make(DocumentIndex, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		idx[doc.ID] = doc
	}
	return idx, true, nil
}

// Clear drops every cached index.
func (d *DocumentResolver) Clear() { d.r.reset() }

// Len reports the number of cached indexes.
func (d *DocumentResolver) Len() int { return d.r.size() }
