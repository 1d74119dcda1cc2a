package snapshot

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"lrucache/internal/cache"
	"lrucache/internal/errs"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "snapshot.bbolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoadKeepsOrder(t *testing.T) {
	s := openStore(t)
	now := time.Now()

	in := []cache.Entry[string, []byte]{
		{Key: "lru", Value: []byte("1")},
		{Key: "mid", Value: []byte("2"), ExpiresAt: now.Add(time.Hour)},
		{Key: "mru", Value: []byte{}},
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load(now)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Load returned %d entries, want 3", len(out))
	}
	for i := range in {
		if out[i].Key != in[i].Key || string(out[i].Value) != string(in[i].Value) {
			t.Fatalf("entry %d = %+v, want %+v", i, out[i], in[i])
		}
		if !out[i].ExpiresAt.Equal(in[i].ExpiresAt) {
			t.Fatalf("entry %d ExpiresAt = %v, want %v", i, out[i].ExpiresAt, in[i].ExpiresAt)
		}
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openStore(t)

	if err := s.Save([]cache.Entry[string, []byte]{{Key: "a"}, {Key: "b"}, {Key: "c"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save([]cache.Entry[string, []byte]{{Key: "z"}}); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	out, err := s.Load(time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].Key != "z" {
		t.Fatalf("Load = %+v, want only z", out)
	}
}

func TestLoadSkipsExpired(t *testing.T) {
	s := openStore(t)
	now := time.Now()

	if err := s.Save([]cache.Entry[string, []byte]{
		{Key: "old", Value: []byte("x"), ExpiresAt: now.Add(-time.Second)},
		{Key: "live", Value: []byte("y")},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load(now)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].Key != "live" {
		t.Fatalf("Load = %+v, want only live", out)
	}
}

func TestLoadReportsCorruptRecord(t *testing.T) {
	s := openStore(t)

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte{0}, []byte("short"))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.Load(time.Now()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load err = %v, want ErrCorrupt", err)
	}
}

func TestRestorePreservesRecency(t *testing.T) {
	now := time.Now()
	c, err := cache.New[string, []byte](2)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer c.Close()

	n := Restore(c, []cache.Entry[string, []byte]{
		{Key: "gone", Value: []byte("0"), ExpiresAt: now.Add(-time.Minute)},
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2"), ExpiresAt: now.Add(time.Hour)},
	}, now)
	if n != 2 {
		t.Fatalf("Restore wrote %d entries, want 2", n)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Keys() = %v, want [a b]", got)
	}

	// a was least recently used before the restart; it goes first.
	c.Put("c", []byte("3"))
	if c.Contains("a") {
		t.Fatalf("expected a to be evicted")
	}
}

func TestCacheRoundTripThroughStore(t *testing.T) {
	s := openStore(t)

	src, err := cache.New[string, []byte](3)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer src.Close()
	src.Put("x", []byte("1"))
	src.Put("y", []byte("2"))
	src.Get("x")

	if err := s.Save(src.Entries()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := s.Load(time.Now())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dst, err := cache.New[string, []byte](3)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer dst.Close()
	Restore(dst, entries, time.Now())

	if got, want := dst.Keys(), src.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("restored Keys() = %v, want %v", got, want)
	}
}

func TestOpenFailureCarriesStack(t *testing.T) {
	// A directory is not a valid bolt file.
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatalf("expected error opening a directory")
	}
	var se *errs.StackError
	if !errors.As(err, &se) || len(se.Stack()) == 0 {
		t.Fatalf("err = %v, want a captured stack", err)
	}
}
