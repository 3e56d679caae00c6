package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Error values returned by New.
var (
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
	ErrInvalidTTL      = errors.New("cache: ttl must be positive")
)

// Event identifies what happened during a cache operation.
type Event string

const (
	// EventHit is reported when Get finds a fresh entry.
	EventHit Event = "hit"
	// EventMiss is reported when Get finds no entry.
	EventMiss Event = "miss"
	// EventExpired is reported when Get finds a stale entry and removes it.
	EventExpired Event = "expired"
	// EventEvicted is reported when Set evicts the least-recently-used entry.
	EventEvicted Event = "evicted"
)

// Observer receives cache events. It is called with the cache lock held and
// must not call back into the cache.
type Observer func(Event)

// Option configures a Cache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer Observer
}

// WithClock overrides the time source. Tests use it to step past the TTL
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver registers an Observer for hit/miss/expiry/eviction events.
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a fixed-capacity LRU cache with a per-entry time-to-live.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[K, entry[V]]
	ttl      time.Duration
	capacity int
	now      func() time.Time
	observer Observer
}

// New creates a Cache holding at most capacity entries, each fresh for ttl
// after it was last set.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	l, err := simplelru.NewLRU[K, entry[V]](capacity, nil)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{
		lru:      l,
		ttl:      ttl,
		capacity: capacity,
		now:      o.now,
		observer: o.observer,
	}, nil
}

// Get returns the value stored under key if it has not expired. A hit marks
// the entry as most recently used; an expired entry is removed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.notify(EventMiss)
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.notify(EventExpired)
		return zero, false
	}
	c.notify(EventHit)
	return e.value, true
}

// Set stores value under key, replacing any previous value and restarting
// its TTL. When the cache is full the least-recently-used entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if evicted := c.lru.Add(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}); evicted {
		c.notify(EventEvicted)
	}
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Len returns the number of stored entries, including ones that have expired
// but not yet been read.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// TTL returns the time-to-live applied by Set.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[K, V]) notify(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}
