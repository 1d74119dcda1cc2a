package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidCapacity is returned by New when capacity < 1.
var ErrInvalidCapacity = errors.New("cache: capacity must be at least 1")

// Cache is a fixed-capacity key–value cache with LRU eviction and optional TTL.
//
// A map gives O(1) key lookup, and a doubly-linked list maintains recency
// ordering. Every operation, Get included, takes the single exclusive lock
// because a hit moves the entry.
//
// Ownership model:
// Cache owns its expiry goroutine (when enabled). Call Close to stop it.
type Cache[K comparable, V any] struct {
	mu sync.Mutex

	capacity int
	items    map[K]*list.Element
	lru      *list.List // Front = least recently used (LRU), Back = most recently used (MRU)
	expiring int        // entries carrying an expiry; skips sweeps when zero

	onEvict  func(K, V)
	observer Observer
	now      func() time.Time

	// Goroutine ownership.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupEvery time.Duration
	closed       bool
}

// entry is the value stored in the list elements.
// The key is kept here because eviction starts from list nodes.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	hasExpiry bool
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return e.hasExpiry && !e.expiresAt.After(now)
}

// Entry is a point-in-time copy of one cached association.
// ExpiresAt is the zero time for entries that never expire.
type Entry[K comparable, V any] struct {
	Key       K
	Value     V
	ExpiresAt time.Time
}

// New constructs an empty cache holding at most capacity entries.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) (*Cache[K, V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		lru:      list.New(),
		observer: nopObserver{},
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cleanupEvery > 0 {
		c.wg.Add(1)
		go c.expiryLoop()
	}

	return c, nil
}

// Close stops the background expiry loop. The cache remains usable.
//
// Close is safe to call multiple times.
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Cancel outside the lock; the loop needs it to finish its last sweep.
	c.cancel()
	c.wg.Wait()
	return nil
}

// Get returns the value stored for key and marks it most recently used.
// A miss returns the zero value and false and leaves recency order untouched.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.observer.Miss()
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if e.expired(c.now()) {
		c.removeElementLocked(el)
		c.observer.Expire()
		c.observer.Miss()
		return zero, false
	}

	c.lru.MoveToBack(el)
	c.observer.Hit()
	return e.value, true
}

// Put stores value under key with no expiry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, 0)
}

// PutWithTTL stores value under key and marks it most recently used.
//
// ttl semantics:
//   - ttl <= 0 means "no expiration"
//
// Inserting into a full cache evicts exactly one entry, the least recently
// used, after expired entries have been reclaimed.
func (c *Cache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	var expiresAt time.Time
	hasExpiry := ttl > 0
	if hasExpiry {
		expiresAt = now.Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		if e.hasExpiry {
			c.expiring--
		}
		if hasExpiry {
			c.expiring++
		}
		e.value = value
		e.hasExpiry = hasExpiry
		e.expiresAt = expiresAt

		// Updating counts as use.
		c.lru.MoveToBack(el)
		return
	}

	if len(c.items) >= c.capacity {
		c.makeRoomLocked(now)
	}

	if hasExpiry {
		c.expiring++
	}
	c.items[key] = c.lru.PushBack(&entry[K, V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
		hasExpiry: hasExpiry,
	})
}

// Peek returns the value for key without updating its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if e.expired(c.now()) {
		return zero, false
	}
	return e.value, true
}

// Contains reports whether a live entry exists for key, without updating
// its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.Peek(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElementLocked(el)
	return true
}

// Len returns the number of stored entries.
//
// Len includes entries that have expired but haven't been reclaimed yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cap returns the fixed capacity.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Keys returns the live keys in LRU -> MRU order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]K, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K, V])
		if e.expired(now) {
			continue
		}
		out = append(out, e.key)
	}
	return out
}

// Entries returns copies of the live entries in LRU -> MRU order.
func (c *Cache[K, V]) Entries() []Entry[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]Entry[K, V], 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[K, V])
		if e.expired(now) {
			continue
		}
		out = append(out, Entry[K, V]{Key: e.key, Value: e.value, ExpiresAt: e.expiresAt})
	}
	return out
}

// makeRoomLocked frees one slot for an insert into a full cache.
//
// Expired entries are reclaimed first since they are already dead; only if
// that frees nothing is the LRU entry evicted.
func (c *Cache[K, V]) makeRoomLocked(now time.Time) {
	if c.deleteExpiredLocked(now) > 0 {
		return
	}

	el := c.lru.Front()
	if el == nil {
		return
	}
	e := el.Value.(*entry[K, V])
	c.removeElementLocked(el)
	c.observer.Evict()
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

func (c *Cache[K, V]) removeElementLocked(el *list.Element) {
	e := el.Value.(*entry[K, V])
	if e.hasExpiry {
		c.expiring--
	}
	delete(c.items, e.key)
	c.lru.Remove(el)
}

// deleteExpiredLocked removes all expired entries and returns how many went.
//
// This is an O(n) scan, skipped entirely when no entry carries an expiry.
func (c *Cache[K, V]) deleteExpiredLocked(now time.Time) int {
	if c.expiring == 0 {
		return 0
	}

	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry[K, V]).expired(now) {
			c.removeElementLocked(el)
			c.observer.Expire()
			removed++
		}
		el = next
	}
	return removed
}
