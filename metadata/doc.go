// Package metadata resolves the human-readable names that decorate retrieval
// results: dataset records by id, and the full document listing of a dataset.
//
// Each resolver owns one bounded expiring cache. A lookup checks the cache
// first; on a miss it fetches from the backend, stores the result and returns
// it. Concurrent misses for the same key share one in-flight fetch, while each
// caller still honours its own context.
//
// Resolution is best effort. A failed lookup yields "absent" (or an empty
// document index) and is never cached, so the next call retries. An empty
// document listing that was fetched successfully is cached like any other.
//
// # Usage
//
//	datasets, _ := metadata.NewDatasetResolver(client, metadata.Options{})
//	documents, _ := metadata.NewDocumentResolver(client, metadata.Options{})
//
//	if ds, ok := datasets.Get(ctx, chunkDatasetID); ok {
//		chunk["dataset_name"] = ds.Name
//	}
//	if doc, ok := documents.Get(ctx, chunkDatasetID)[docID]; ok {
//		chunk["document_name"] = doc.Name
//	}
package metadata
