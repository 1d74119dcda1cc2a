package cache

import "time"

// Observer receives cache events. Implementations must be cheap and must not
// call back into the cache: they run while the cache lock is held.
type Observer interface {
	Hit()
	Miss()
	Evict()
	Expire()
}

type nopObserver struct{}

func (nopObserver) Hit()    {}
func (nopObserver) Miss()   {}
func (nopObserver) Evict()  {}
func (nopObserver) Expire() {}

// Option configures a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithEvictionCallback registers fn to run for every capacity eviction.
// Expired and deleted entries do not trigger it.
func WithEvictionCallback[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// WithObserver routes hit/miss/eviction/expiry events to o.
func WithObserver[K comparable, V any](o Observer) Option[K, V] {
	return func(c *Cache[K, V]) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithCleanupInterval starts a background loop that removes expired entries
// every d. d <= 0 disables it; lazy expiration on Get still works.
func WithCleanupInterval[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.cleanupEvery = d
	}
}

func withClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}
