// Package cache provides a thread-safe in-memory TTL cache with LRU eviction.
//
// The cache is read-mostly and time-boxed: losing entries only changes
// recomputation cost, never correctness. It backs the delivery URL cache and
// the tenant usage snapshot cache.
//
// Example:
//
//	c := cache.New[string, string](1000, 5*time.Minute)
//	c.Set("key", "value")
//	v, ok := c.Get("key")
package cache
