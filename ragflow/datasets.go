package ragflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListOptions selects a page of the dataset listing.
type ListOptions struct {
	// Page is 1-indexed. Default: 1
	Page int
	// PageSize bounds the number of datasets returned. Default: 100
	PageSize int
	// OrderBy is the sort field. Default: "create_time"
	OrderBy string
	// Ascending flips the default descending order.
	Ascending bool
}

func (o ListOptions) query() url.Values {
	page := o.Page
	if page <= 0 {
		page = 1
	}
	size := o.PageSize
	if size <= 0 {
		size = 100
	}
	orderBy := o.OrderBy
	if orderBy == "" {
		orderBy = "create_time"
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	q.Set("orderby", orderBy)
	q.Set("desc", strconv.FormatBool(!o.Ascending))
	return q
}

// DatasetsPage lists one page of datasets and reports every failure.
func (c *Client) DatasetsPage(ctx context.Context, opts ListOptions) ([]Dataset, error) {
	env, err := c.call(request{ctx: ctx, method: http.MethodGet, path: "/datasets", query: opts.query()})
	if err != nil {
		return nil, err
	}
	return datasetsFromData(env.Data)
}

// ListDatasets lists one page of datasets. Discovery is best effort: any
// failure is logged and yields an empty result.
func (c *Client) ListDatasets(ctx context.Context, opts ListOptions) []Dataset {
	datasets, err := c.DatasetsPage(ctx, opts)
	if err != nil {
		c.logger.Warn("listing datasets failed", "error", err)
		return nil
	}
	return datasets
}

// FindDataset looks up a single dataset by id. An empty listing reports
// found=false; RAGFlow rejects unknown or foreign ids with *EnvelopeError.
func (c *Client) FindDataset(ctx context.Context, id string) (Dataset, bool, error) {
	q := url.Values{}
	q.Set("id", id)
	q.Set("page_size", "1")
	env, err := c.call(request{ctx: ctx, method: http.MethodGet, path: "/datasets", query: q})
	if err != nil {
		return Dataset{}, false, err
	}
	datasets, err := datasetsFromData(env.Data)
	if err != nil {
		return Dataset{}, false, err
	}
	if len(datasets) == 0 {
		return Dataset{}, false, nil
	}
	return datasets[0], true, nil
}

func datasetsFromData(data any) ([]Dataset, error) {
	if data == nil {
		return nil, nil
	}
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: dataset listing is %T, want array", ErrMalformedResponse, data)
	}
	datasets := make([]Dataset, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if ds, ok := datasetFromMap(m); ok {
			datasets = append(datasets, ds)
		}
	}
	return datasets, nil
}
