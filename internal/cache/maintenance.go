package cache

import "time"

// expiryLoop periodically removes expired entries so keys written once and
// never read again do not pin memory.
//
// A ticker-driven full scan avoids per-entry timers, which are expensive and
// hard to own.
func (c *Cache[K, V]) expiryLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.deleteExpiredLocked(c.now())
			c.mu.Unlock()
		}
	}
}
