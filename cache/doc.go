// Package cache provides a bounded, expiring key/value cache used to hold
// metadata derived from the RAGFlow backend.
//
// A Cache has a fixed capacity and a single time-to-live applied to every
// entry. Entries are ordered by recency: Get and Set both mark an entry as
// most recently used, and a Set that pushes the cache over capacity evicts
// exactly one least-recently-used entry.
//
// Expiry is lazy. There is no background sweeper; an expired entry stays in
// memory until it is read (at which point it is removed and reported as a
// miss) or until capacity pressure evicts it.
//
// # Usage
//
//	c, err := cache.New[string, ragflow.Dataset](256, 5*time.Minute)
//	if err != nil {
//	    return err
//	}
//	c.Set("ds-1", dataset)
//	if v, ok := c.Get("ds-1"); ok {
//	    // fresh hit
//	}
//
// # Thread Safety
//
// All Cache methods are safe for concurrent use.
package cache
