// Package search finds RAGFlow documents by name, so a caller can discover the
// document ids to pass as a retrieval filter.
//
// # Usage
//
// The primary type is [Finder], which reads document listings through a
// [DocumentSource] (normally the metadata document resolver):
//
//	finder := search.NewFinder(documents, search.Config{})
//	defer finder.Clear()
//
//	matches, err := finder.Find(ctx, []string{"ds-1"}, "handbook", 20)
//
// # Configuration
//
// [Config] allows customization of field boosts and safety limits:
//
//	cfg := search.Config{
//	    NameBoost:     3,    // Boost name matches (default: 3)
//	    TypeBoost:     1,    // Boost file type matches (default: 1)
//	    MaxDocs:       5000, // Limit documents indexed per dataset (0 = unlimited)
//	}
//
// # Thread Safety
//
// Finder is safe for concurrent use. It keeps one in-memory Bleve index per
// dataset behind an RWMutex and rebuilds it only when the fingerprint of the
// dataset's document listing changes.
//
// # Behavior
//
// An empty query lists documents in name order. Other queries combine a fuzzy
// match with a prefix match on the name, plus matches on type and location.
// Hits from several datasets are merged with deterministic tie-breaking
// (score DESC, then name ASC, then id ASC).
package search
