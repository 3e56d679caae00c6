package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/jonwraymond/toolragflow/metadata"
	"github.com/jonwraymond/toolragflow/ragflow"
)

// DefaultLimit is used when Find is called with a non-positive limit.
const DefaultLimit = 20

// ErrNoDatasets is returned by Find when no dataset id is given.
var ErrNoDatasets = errors.New("search: at least one dataset id is required")

// DocumentSource provides the document listing of a dataset.
// *metadata.DocumentResolver satisfies it.
type DocumentSource interface {
	Get(ctx context.Context, datasetID string) metadata.DocumentIndex
}

// Config configures a Finder.
type Config struct {
	// NameBoost weights name matches. Default: 3
	NameBoost float64
	// TypeBoost weights file type matches. Default: 1
	TypeBoost float64
	// LocationBoost weights location matches. Default: 1
	LocationBoost float64
	// MaxDocs limits the documents indexed per dataset (0 = unlimited).
	MaxDocs int
	// Logger receives diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// Match is one document found by Find.
type Match struct {
	DatasetID  string           `json:"dataset_id"`
	DocumentID string           `json:"document_id"`
	Name       string           `json:"name"`
	Score      float64          `json:"score"`
	Metadata   ragflow.Document `json:"metadata"`
}

// indexedDoc is the shape stored in Bleve.
type indexedDoc struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

type datasetIndex struct {
	fingerprint string
	index       bleve.Index
	docs        metadata.DocumentIndex
}

// Finder searches document names across datasets.
type Finder struct {
	source DocumentSource
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	indexes map[string]*datasetIndex
}

// NewFinder creates a Finder reading listings from source.
func NewFinder(source DocumentSource, cfg Config) *Finder {
	if cfg.NameBoost <= 0 {
		cfg.NameBoost = 3
	}
	if cfg.TypeBoost <= 0 {
		cfg.TypeBoost = 1
	}
	if cfg.LocationBoost <= 0 {
		cfg.LocationBoost = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Finder{
		source:  source,
		cfg:     cfg,
		logger:  cfg.Logger,
		indexes: make(map[string]*datasetIndex),
	}
}

// Find returns up to limit documents of the given datasets matching text.
func (f *Finder) Find(ctx context.Context, datasetIDs []string, text string, limit int) ([]Match, error) {
	if len(datasetIDs) == 0 {
		return nil, ErrNoDatasets
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	text = strings.TrimSpace(text)

	var matches []Match
	seen := make(map[string]struct{}, len(datasetIDs))
	for _, datasetID := range datasetIDs {
		if _, dup := seen[datasetID]; dup {
			continue
		}
		seen[datasetID] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs := f.source.Get(ctx, datasetID)
		if len(docs) == 0 {
			continue
		}

		var found []Match
		var err error
		if text == "" {
			found = listAll(datasetID, docs)
		} else {
			found, err = f.searchDataset(ctx, datasetID, docs, text, limit)
		}
		if err != nil {
			return nil, fmt.Errorf("search dataset %s: %w", datasetID, err)
		}
		matches = append(matches, found...)
	}

	slices.SortStableFunc(matches, compareMatches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Clear closes and drops every index.
func (f *Finder) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, di := range f.indexes {
		if err := di.index.Close(); err != nil {
			f.logger.Warn("closing document index failed", "dataset_id", id, "error", err)
		}
	}
	f.indexes = make(map[string]*datasetIndex)
}

// Len reports the number of datasets currently indexed.
func (f *Finder) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.indexes)
}

func (f *Finder) searchDataset(ctx context.Context, datasetID string, docs metadata.DocumentIndex, text string, limit int) ([]Match, error) {
	fp := computeFingerprint(docs)

	f.mu.RLock()
	di, ok := f.indexes[datasetID]
	if ok && di.fingerprint == fp {
		defer f.mu.RUnlock()
		return f.query(ctx, datasetID, di, text, limit)
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	di, err := f.rebuildLocked(datasetID, fp, docs)
	if err != nil {
		return nil, err
	}
	return f.query(ctx, datasetID, di, text, limit)
}

// rebuildLocked returns the index for datasetID, building it when missing or
// stale. f.mu must be held for writing.
func (f *Finder) rebuildLocked(datasetID, fp string, docs metadata.DocumentIndex) (*datasetIndex, error) {
	if di, ok := f.indexes[datasetID]; ok {
		if di.fingerprint == fp {
			return di, nil
		}
		_ = di.index.Close()
		delete(f.indexes, datasetID)
	}

	mapping := bleve.NewIndexMapping()
	mapping.DefaultAnalyzer = "standard"
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if f.cfg.MaxDocs > 0 && len(ids) > f.cfg.MaxDocs {
		ids = ids[:f.cfg.MaxDocs]
	}

	batch := idx.NewBatch()
	for _, id := range ids {
		doc := docs[id]
		if err := batch.Index(id, indexedDoc{
			Name:     doc.Name,
			Title:    strings.TrimSuffix(doc.Name, path.Ext(doc.Name)),
			Type:     doc.Type,
			Location: doc.Location,
		}); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, err
	}

	di := &datasetIndex{fingerprint: fp, index: idx, docs: docs}
	f.indexes[datasetID] = di
	f.logger.Debug("document index built", "dataset_id", datasetID, "documents", len(ids))
	return di, nil
}

func (f *Finder) query(ctx context.Context, datasetID string, di *datasetIndex, text string, limit int) ([]Match, error) {
	req := bleve.NewSearchRequestOptions(f.buildQuery(text), limit, 0, false)
	res, err := di.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := di.docs[hit.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			DatasetID:  datasetID,
			DocumentID: hit.ID,
			Name:       doc.Name,
			Score:      hit.Score,
			Metadata:   doc,
		})
	}
	return matches, nil
}

func (f *Finder) buildQuery(text string) query.Query {
	name := bleve.NewMatchQuery(text)
	name.SetField("name")
	name.SetFuzziness(1)
	name.SetBoost(f.cfg.NameBoost)

	// The title drops the file extension so "handbook" also matches
	// "handbook.pdf" as a whole term.
	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetFuzziness(1)
	title.SetBoost(f.cfg.NameBoost)

	docType := bleve.NewMatchQuery(text)
	docType.SetField("type")
	docType.SetBoost(f.cfg.TypeBoost)

	location := bleve.NewMatchQuery(text)
	location.SetField("location")
	location.SetBoost(f.cfg.LocationBoost)

	queries := []query.Query{name, title, docType, location}
	for _, term := range strings.Fields(strings.ToLower(text)) {
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("name")
		prefix.SetBoost(f.cfg.NameBoost)
		queries = append(queries, prefix)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func listAll(datasetID string, docs metadata.DocumentIndex) []Match {
	matches := make([]Match, 0, len(docs))
	for id, doc := range docs {
		matches = append(matches, Match{
			DatasetID:  datasetID,
			DocumentID: id,
			Name:       doc.Name,
			Metadata:   doc,
		})
	}
	return matches
}

func compareMatches(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DatasetID, b.DatasetID); c != 0 {
		return c
	}
	return cmp.Compare(a.DocumentID, b.DocumentID)
}
