package metadata

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolragflow/ragflow"
)

// DatasetSource looks up one dataset by id. *ragflow.Client satisfies it.
type DatasetSource interface {
	FindDataset(ctx context.Context, id string) (ragflow.Dataset, bool, error)
}

// DatasetResolver resolves dataset ids to dataset records.
type DatasetResolver struct {
	source DatasetSource
	r      *resolver[ragflow.Dataset]
}

// NewDatasetResolver creates a resolver backed by source.
func NewDatasetResolver(source DatasetSource, opts Options) (*DatasetResolver, error) {
	if source == nil {
		return nil, errors.New("metadata: dataset source is required")
	}
	r, err := newResolver[ragflow.Dataset]("dataset", opts.withDefaults(DefaultDatasetCapacity))
	if err != nil {
		return nil, err
	}
	return &DatasetResolver{source: source, r: r}, nil
}

// Get returns the dataset with the given id, or false when it cannot be
// resolved for any reason.
func (d *DatasetResolver) Get(ctx context.Context, id string) (ragflow.Dataset, bool) {
	return d.r.get(ctx, id, d.source.FindDataset)
}

// Prime stores datasets already obtained elsewhere, typically from a listing.
func (d *DatasetResolver) Prime(datasets ...ragflow.Dataset) {
	for _, ds := range datasets {
		d.r.set(ds.ID, ds)
	}
}

// Clear drops every cached dataset.
func (d *DatasetResolver) Clear() { d.r.reset() }

// Len reports the number of cached datasets, including expired ones not yet
// observed.
func (d *DatasetResolver) Len() int { return d.r.size() }
