// Package retrieval implements the search pipeline behind the
// search_documents tool, together with the dataset listing and health
// reports of the other tools.
//
// A Search call moves through fixed states:
//
//	ResolvingScope -> Requesting -> Enriching -> Done
//
// with two early exits. When the caller gave no dataset ids and the backend
// lists none, the result reports that no datasets are available and the
// retrieval endpoint is never called. When the retrieval call fails, either
// at the transport or with a non-zero envelope code, the result carries the
// error with an empty chunk list and pagination zeroed at the requested page.
//
// Enrichment decorates each chunk with dataset_name, document_name and
// document_metadata using the metadata resolvers. It runs in parallel with a
// bounded number of workers and keeps the backend's chunk order. A lookup that
// fails leaves its chunk untouched; chunks are never dropped.
//
// Search never returns an error and never panics: every failure becomes a
// Result with Error set, so the tool layer can always serialize it.
package retrieval
