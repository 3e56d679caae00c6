package metadata

import (
	"log/slog"
	"time"

	"github.com/jonwraymond/toolragflow/cache"
)

// Cache defaults applied when an Options field is zero.
const (
	DefaultDatasetCapacity  = 256
	DefaultDocumentCapacity = 64
	DefaultTTL              = 5 * time.Minute
)

// Options configures a resolver and its cache.
type Options struct {
	// Capacity bounds the number of cached keys. Default depends on the resolver.
	Capacity int
	// TTL is how long a cached value stays fresh. Default: 5m
	TTL time.Duration
	// Logger receives diagnostics. Default: slog.Default()
	Logger *slog.Logger
	// Observer is told about cache hits, misses, expiries and evictions.
	Observer cache.Observer
	// Clock overrides time.Now for the cache (tests).
	Clock func() time.Time
}

func (o Options) withDefaults(capacity int) Options {
	if o.Capacity <= 0 {
		o.Capacity = capacity
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) cacheOptions() []cache.Option {
	var opts []cache.Option
	if o.Clock != nil {
		opts = append(opts, cache.WithClock(o.Clock))
	}
	if o.Observer != nil {
		opts = append(opts, cache.WithObserver(o.Observer))
	}
	return opts
}
