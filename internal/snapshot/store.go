// Package snapshot persists cache contents to a bbolt file so a restarted
// daemon comes back warm, with recency order intact.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"lrucache/internal/cache"
	"lrucache/internal/errs"
)

var bucketName = []byte("entries")

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("snapshot: corrupt record")

// Store is a bbolt-backed snapshot file. It is safe for concurrent use.
type Store struct {
	db *bolt.DB
}

// Open initializes or opens a Store at path, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, "create snapshot dir")
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errs.Wrapf(errs.WithStack(err), "open snapshot %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "create snapshot bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot with entries, which must be in
// LRU -> MRU order. Bolt keys are big-endian sequence numbers, so cursor
// order on Load reproduces that order.
func (s *Store) Save(entries []cache.Entry[string, []byte]) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketName)
		if err != nil {
			return err
		}

		var seq [8]byte
		for i, e := range entries {
			binary.BigEndian.PutUint64(seq[:], uint64(i))
			if err := b.Put(seq[:], encodeRecord(e)); err != nil {
				return err
			}
		}
		return nil
	})
	return errs.Wrap(errs.WithStack(err), "save snapshot")
}

// Load returns the stored entries in LRU -> MRU order, skipping any that
// expired before now.
func (s *Store) Load(now time.Time) ([]cache.Entry[string, []byte], error) {
	var out []cache.Entry[string, []byte]
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			e, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("record %x: %w", k, err)
			}
			if !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now) {
				return nil
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(err, "load snapshot")
	}
	return out, nil
}

// Restore replays entries into c in order, so the last entry ends up most
// recently used. Entries keep their remaining TTL relative to now. It
// returns how many entries were written.
func Restore(c *cache.Cache[string, []byte], entries []cache.Entry[string, []byte], now time.Time) int {
	n := 0
	for _, e := range entries {
		var ttl time.Duration
		if !e.ExpiresAt.IsZero() {
			ttl = e.ExpiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
		}
		c.PutWithTTL(e.Key, e.Value, ttl)
		n++
	}
	return n
}

// Record layout: 8 bytes big endian expiresAt (unix nanos, 0 = never) ||
// 4 bytes big endian key length || key || value.
func encodeRecord(e cache.Entry[string, []byte]) []byte {
	var expiresAt int64
	if !e.ExpiresAt.IsZero() {
		expiresAt = e.ExpiresAt.UnixNano()
	}

	buf := make([]byte, 12+len(e.Key)+len(e.Value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(e.Key)))
	copy(buf[12:], e.Key)
	copy(buf[12+len(e.Key):], e.Value)
	return buf
}

func decodeRecord(v []byte) (cache.Entry[string, []byte], error) {
	if len(v) < 12 {
		return cache.Entry[string, []byte]{}, ErrCorrupt
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
	keyLen := int(binary.BigEndian.Uint32(v[8:12]))
	if keyLen > len(v)-12 {
		return cache.Entry[string, []byte]{}, ErrCorrupt
	}

	e := cache.Entry[string, []byte]{
		Key: string(v[12 : 12+keyLen]),
		// Bolt memory is only valid inside the transaction.
		Value: append([]byte(nil), v[12+keyLen:]...),
	}
	if expiresAt > 0 {
		e.ExpiresAt = time.Unix(0, expiresAt)
	}
	return e, nil
}
