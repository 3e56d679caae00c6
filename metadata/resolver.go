package metadata

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolragflow/cache"
)

// resolver is the cache-then-fetch core shared by both resolvers.
type resolver[V any] struct {
	kind   string
	cache  *cache.Cache[string, V]
	group  singleflight.Group
	logger *slog.Logger
}

func newResolver[V any](kind string, opts Options) (*resolver[V], error) {
	c, err := cache.New[string, V](opts.Capacity, opts.TTL, opts.cacheOptions()...)
	if err != nil {
		return nil, err
	}
	return &resolver[V]{kind: kind, cache: c, logger: opts.Logger}, nil
}

// fetchFunc loads the value for a key. found=false with a nil error means the
// backend has nothing for the key.
type fetchFunc[V any] func(ctx context.Context, key string) (v V, found bool, err error)

type outcome[V any] struct {
	value V
	found bool
}

// get returns the cached or freshly fetched value for key. The shared fetch
// is detached from any single caller's cancellation; each caller stops
// waiting when its own context ends.
func (r *resolver[V]) get(ctx context.Context, key string, fetch fetchFunc[V]) (V, bool) {
	var zero V
	key = strings.TrimSpace(key)
	if key == "" {
		return zero, false
	}
	if v, ok := r.cache.Get(key); ok {
		return v, true
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		if v, ok := r.cache.Get(key); ok {
			return outcome[V]{value: v, found: true}, nil
		}
		v, found, err := fetch(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		if found {
			r.cache.Set(key, v)
		}
		return outcome[V]{value: v, found: found}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logger.Warn("metadata lookup failed", "kind", r.kind, "key", key, "error", res.Err)
			return zero, false
		}
		out := res.Val.(outcome[V])
		return out.value, out.found
	case <-ctx.Done():
		r.logger.Debug("metadata lookup abandoned", "kind", r.kind, "key", key, "error", ctx.Err())
		return zero, false
	}
}

func (r *resolver[V]) set(key string, v V) {
	if key = strings.TrimSpace(key); key != "" {
		r.cache.Set(key, v)
	}
}

func (r *resolver[V]) reset() {
	r.cache.Clear()
}

func (r *resolver[V]) size() int {
	return r.cache.Len()
}
