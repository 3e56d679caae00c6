package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/toolragflow/cache"
	"github.com/jonwraymond/toolragflow/ragflow"
)

type fakeDatasets struct {
	calls   atomic.Int32
	records map[string]ragflow.Dataset
	err     error
	gate    chan struct{}
}

func (f *fakeDatasets) FindDataset(_ context.Context, id string) (ragflow.Dataset, bool, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return ragflow.Dataset{}, false, f.err
	}
	ds, ok := f.records[id]
	return ds, ok, nil
}

type fakeDocuments struct {
	calls atomic.Int32
	docs  map[string][]ragflow.Document
	err   error
	gate  chan struct{}
}

func (f *fakeDocuments) ListDocuments(_ context.Context, datasetID string) ([]ragflow.Document, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[datasetID], nil
}

func testOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestNewResolvers_RequireSource(t *testing.T) {
	if _, err := NewDatasetResolver(nil, testOptions()); err == nil {
		t.Error("expected error for nil dataset source")
	}
	if _, err := NewDocumentResolver(nil, testOptions()); err == nil {
		t.Error("expected error for nil document source")
	}
}

func TestDatasetResolver_CachesHits(t *testing.T) {
	src := &fakeDatasets{records: map[string]ragflow.Dataset{"ds-1": {ID: "ds-1", Name: "Docs"}}}
	r, err := NewDatasetResolver(src, testOptions())
	if err != nil {
		t.Fatalf("NewDatasetResolver failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		ds, ok := r.Get(context.Background(), "ds-1")
		if !ok || ds.Name != "Docs" {
			t.Fatalf("expected Docs, got %+v ok=%v", ds, ok)
		}
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", src.calls.Load())
	}
}

func TestDatasetResolver_FailuresNotCached(t *testing.T) {
	src := &fakeDatasets{err: errors.New("boom")}
	r, _ := NewDatasetResolver(src, testOptions())

	if _, ok := r.Get(context.Background(), "ds-1"); ok {
		t.Fatal("expected absent on error")
	}
	if _, ok := r.Get(context.Background(), "ds-1"); ok {
		t.Fatal("expected absent on error")
	}
	if src.calls.Load() != 2 {
		t.Errorf("expected failures to be retried, got %d calls", src.calls.Load())
	}
	if r.Len() != 0 {
		t.Errorf("expected empty cache, got %d", r.Len())
	}
}

func TestDatasetResolver_NotFound(t *testing.T) {
	src := &fakeDatasets{records: map[string]ragflow.Dataset{}}
	r, _ := NewDatasetResolver(src, testOptions())
	if _, ok := r.Get(context.Background(), "missing"); ok {
		t.Fatal("expected absent for unknown dataset")
	}
	if _, ok := r.Get(context.Background(), "  "); ok {
		t.Fatal("expected absent for blank id")
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected blank id to skip the backend, got %d calls", src.calls.Load())
	}
}

func TestDatasetResolver_PrimeAndClear(t *testing.T) {
	src := &fakeDatasets{records: map[string]ragflow.Dataset{"ds-1": {ID: "ds-1", Name: "Fresh"}}}
	r, _ := NewDatasetResolver(src, testOptions())

	r.Prime(ragflow.Dataset{ID: "ds-1", Name: "Primed"}, ragflow.Dataset{Name: "no id"})
	if ds, _ := r.Get(context.Background(), "ds-1"); ds.Name != "Primed" {
		t.Fatalf("expected primed record, got %+v", ds)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("expected no backend call, got %d", src.calls.Load())
	}

	r.Clear()
	if ds, _ := r.Get(context.Background(), "ds-1"); ds.Name != "Fresh" {
		t.Fatalf("expected refetched record after Clear, got %+v", ds)
	}
}

func TestDatasetResolver_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	opts := testOptions()
	opts.TTL = time.Minute
	opts.Clock = func() time.Time { return now }

	src := &fakeDatasets{records: map[string]ragflow.Dataset{"ds-1": {ID: "ds-1"}}}
	r, _ := NewDatasetResolver(src, opts)

	r.Get(context.Background(), "ds-1")
	now = now.Add(30 * time.Second)
	r.Get(context.Background(), "ds-1")
	if src.calls.Load() != 1 {
		t.Fatalf("expected fresh hit, got %d calls", src.calls.Load())
	}
	now = now.Add(31 * time.Second)
	r.Get(context.Background(), "ds-1")
	if src.calls.Load() != 2 {
		t.Fatalf("expected refetch after expiry, got %d calls", src.calls.Load())
	}
}

func TestDatasetResolver_CoalescesConcurrentMisses(t *testing.T) {
	src := &fakeDatasets{
		records: map[string]ragflow.Dataset{"ds-1": {ID: "ds-1", Name: "Docs"}},
		gate:    make(chan struct{}),
	}
	r, _ := NewDatasetResolver(src, testOptions())

	const callers = 8
	var wg sync.WaitGroup
	var found atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Get(context.Background(), "ds-1"); ok {
				found.Add(1)
			}
		}()
	}

	// Let the callers pile up on the in-flight fetch before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if found.Load() != callers {
		t.Errorf("expected all %d callers to resolve, got %d", callers, found.Load())
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected 1 coalesced backend call, got %d", src.calls.Load())
	}
}

func TestDatasetResolver_CallerContext(t *testing.T) {
	src := &fakeDatasets{
		records: map[string]ragflow.Dataset{"ds-1": {ID: "ds-1"}},
		gate:    make(chan struct{}),
	}
	r, _ := NewDatasetResolver(src, testOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := r.Get(ctx, "ds-1"); ok {
		t.Fatal("expected absent once the caller's context ends")
	}

	close(src.gate)
	// The detached fetch still completes and populates the cache.
	deadline := time.Now().Add(time.Second)
	for r.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := r.Get(context.Background(), "ds-1"); !ok {
		t.Fatal("expected cached dataset after the shared fetch finished")
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected 1 backend call, got %d", src.calls.Load())
	}
}

func TestDocumentResolver_BuildsIndex(t *testing.T) {
	src := &fakeDocuments{docs: map[string][]ragflow.Document{
		"ds-1": {{ID: "d1", Name: "a.pdf"}, {Name: "no id"}, {ID: "d2", Name: "b.md"}},
	}}
	r, _ := NewDocumentResolver(src, testOptions())

	idx := r.Get(context.Background(), "ds-1")
	if len(idx) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(idx))
	}
	if idx["d2"].Name != "b.md" {
		t.Errorf("expected b.md, got %+v", idx["d2"])
	}
	r.Get(context.Background(), "ds-1")
	if src.calls.Load() != 1 {
		t.Errorf("expected index cached as a unit, got %d calls", src.calls.Load())
	}
}

func TestDocumentResolver_EmptyListingCached(t *testing.T) {
	src := &fakeDocuments{docs: map[string][]ragflow.Document{}}
	r, _ := NewDocumentResolver(src, testOptions())

	if idx := r.Get(context.Background(), "ds-empty"); idx == nil || len(idx) != 0 {
		t.Fatalf("expected empty non-nil index, got %#v", idx)
	}
	r.Get(context.Background(), "ds-empty")
	if src.calls.Load() != 1 {
		t.Errorf("expected empty listing to be cached, got %d calls", src.calls.Load())
	}
}

func TestDocumentResolver_FailureEmptyAndRetried(t *testing.T) {
	src := &fakeDocuments{err: ragflow.ErrTimeout}
	r, _ := NewDocumentResolver(src, testOptions())

	if idx := r.Get(context.Background(), "ds-1"); idx == nil || len(idx) != 0 {
		t.Fatalf("expected empty index on failure, got %#v", idx)
	}
	r.Get(context.Background(), "ds-1")
	if src.calls.Load() != 2 {
		t.Errorf("expected failure not cached, got %d calls", src.calls.Load())
	}
}

func TestDocumentResolver_Observer(t *testing.T) {
	var mu sync.Mutex
	events := map[cache.Event]int{}
	opts := testOptions()
	opts.Capacity = 1
	opts.Observer = func(e cache.Event) {
		mu.Lock()
		defer mu.Unlock()
		events[e]++
	}

	src := &fakeDocuments{docs: map[string][]ragflow.Document{"a": {{ID: "1"}}, "b": {{ID: "2"}}}}
	r, _ := NewDocumentResolver(src, opts)
	r.Get(context.Background(), "a")
	r.Get(context.Background(), "a")
	r.Get(context.Background(), "b")

	mu.Lock()
	defer mu.Unlock()
	if events[cache.EventHit] != 1 {
		t.Errorf("expected 1 hit, got %d", events[cache.EventHit])
	}
	if events[cache.EventEvicted] != 1 {
		t.Errorf("expected 1 eviction, got %d", events[cache.EventEvicted])
	}
}
