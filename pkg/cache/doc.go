// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// Capacity bounds memory; TTLs bound staleness. Expired entries are removed
// lazily when they are read, and the least recently used entry is evicted
// when a Put exceeds capacity.
//
// # Usage
//
//	seen := cache.NewLRUCache[string, struct{}](10_000)
//	seen.PutWithTTL("evt_123", struct{}{}, 72*time.Hour)
//	if _, ok := seen.Get("evt_123"); ok {
//		// processed recently
//	}
//
// Tests can pin time with WithClock.
package cache
