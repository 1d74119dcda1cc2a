// Package cache implements a bounded, in-memory least-recently-used cache.
//
// Goals for this package:
//   - Keep the core data structures explicit (map + doubly-linked list)
//   - O(1) Get/Put/Delete via map index + list pointers
//   - A miss is a normal (zero, false) result, never an in-band sentinel
//   - Optional per-entry TTL with lazy and active expiration
//   - Own and cleanly stop the background expiry goroutine
package cache
