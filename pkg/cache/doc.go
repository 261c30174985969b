// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// The cache evicts the least recently used entry once it reaches its capacity.
// Entries written with a TTL disappear once it elapses; expiry is checked
// lazily on access and expired entries are evicted before live ones.
//
// # Usage
//
//	c := cache.NewTTLCache[string, Snapshot](10_000, 10*time.Minute)
//
//	c.Put("workspace:W1", snap)                  // default TTL
//	c.PutWithTTL("workspace:W2", snap, time.Minute)
//
//	if snap, ok := c.Get("workspace:W1"); ok {
//		// live entry
//	}
//
//	c.Remove("workspace:W1")
//
// A zero default TTL keeps entries until they are evicted. Tests can replace
// the time source with SetClock.
//
// # Eviction callbacks
//
// SetEvictCallback registers a function called for every entry that leaves the
// cache through eviction, expiry, Remove or Clear:
//
//	c.SetEvictCallback(func(key string, s Snapshot) {
//		evictions.Inc()
//	})
//
// All operations are O(1) except eviction at capacity, which scans for an
// expired entry before falling back to the least recently used one.
package cache
