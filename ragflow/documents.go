package ragflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// maxDocumentPages caps the document listing walk.
const maxDocumentPages = 50

// ListDocuments returns every document of a dataset, walking the paginated
// listing until the reported total is reached or the page cap. Without a
// total, a short page ends the walk. Documents without an id are skipped.
func (c *Client) ListDocuments(ctx context.Context, datasetID string) ([]Document, error) {
	path := "/datasets/" + url.PathEscape(datasetID) + "/documents"

	var docs []Document
	seen := 0
	for page := 1; page <= maxDocumentPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(c.docPageSize))

		env, err := c.call(request{ctx: ctx, method: http.MethodGet, path: path, query: q})
		if err != nil {
			return nil, err
		}

		items, total, err := documentsFromData(env.Data)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if doc, ok := documentFromMap(m); ok {
				docs = append(docs, doc)
			}
		}

		seen += len(items)
		if len(items) == 0 {
			break
		}
		if total >= 0 {
			if seen >= total {
				break
			}
		} else if len(items) < c.docPageSize {
			break
		}
	}
	return docs, nil
}

// documentsFromData extracts data.docs and data.total (-1 when absent).
func documentsFromData(data any) ([]any, int, error) {
	if data == nil {
		return nil, -1, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, -1, fmt.Errorf("%w: document listing is %T, want object", ErrMalformedResponse, data)
	}
	total := -1
	if n, ok := intValue(m["total"]); ok {
		total = n
	}
	items, _ := m["docs"].([]any)
	return items, total, nil
}
