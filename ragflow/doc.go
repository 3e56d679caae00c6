// Package ragflow is a client for the subset of the RAGFlow REST API that the
// tool server needs: dataset listing and lookup, per-dataset document listing,
// and chunk retrieval.
//
// A Client owns one pooled HTTP transport, created at construction and reused
// for every call. Every request carries the bearer token and a JSON content
// type. Failures are reported through a small taxonomy:
//
//   - *APIError for HTTP status >= 400, carrying the status and raw body
//   - ErrTimeout when no response arrives in time
//   - ErrConnection for other transport failures
//   - ErrMalformedResponse when a response has an unexpected shape
//   - *EnvelopeError when RAGFlow answers with a non-zero envelope code
//
// RAGFlow wraps every response in an envelope {code, message, data} where
// code 0 means success regardless of HTTP status. The client models this as
// two layers: Request returns the decoded JSON value (transport outcome), and
// ParseEnvelope/Envelope.Err interpret it (application outcome), so each
// layer can be tested on its own.
//
// Dataset listing through ListDatasets is best effort: any failure yields an
// empty slice. Callers that need to see the failure use DatasetsPage.
package ragflow
