package hcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/LarsHaalck/neomutt/mailbox"
)

func sampleRecord() *mailbox.Message {
	return &mailbox.Message{
		Path: "cur/1000.R1.host:2,S",
		Key:  "1000.R1.host",
		Read: true,
		Size: 42,
		Envelope: &mailbox.Envelope{
			From:      "sender@example.com",
			To:        []string{"user@example.com"},
			Subject:   "Test",
			MessageID: "<abc@example.com>",
		},
	}
}

// caches returns one instance of every Cache implementation, each backed by
// test-scoped storage.
func caches(t *testing.T) map[string]Cache {
	t.Helper()

	sq, err := NewSQLite(filepath.Join(t.TempDir(), "hcache.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Cache{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreFetch(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleRecord()
			storedAt := time.Unix(1700000000, 0)

			if err := c.Store(want.Key, want, storedAt); err != nil {
				t.Fatalf("Store failed: %v", err)
			}

			got, at, ok := c.Fetch(want.Key)
			if !ok {
				t.Fatal("stored record not found")
			}
			if !at.Equal(storedAt) {
				t.Errorf("storedAt = %v, want %v", at, storedAt)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFetchMiss(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, ok := c.Fetch("no-such-key"); ok {
				t.Error("hit on a missing key")
			}
		})
	}
}

func TestOverwrite(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			if err := c.Store(rec.Key, rec, time.Unix(1, 0)); err != nil {
				t.Fatal(err)
			}

			rec.Envelope.Subject = "Updated"
			if err := c.Store(rec.Key, rec, time.Unix(2, 0)); err != nil {
				t.Fatal(err)
			}

			got, at, ok := c.Fetch(rec.Key)
			if !ok {
				t.Fatal("record vanished after overwrite")
			}
			if got.Envelope.Subject != "Updated" || !at.Equal(time.Unix(2, 0)) {
				t.Errorf("stale record returned: subject=%q storedAt=%v", got.Envelope.Subject, at)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			if err := c.Store(rec.Key, rec, time.Now()); err != nil {
				t.Fatal(err)
			}
			if err := c.Delete(rec.Key); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, _, ok := c.Fetch(rec.Key); ok {
				t.Error("record survived deletion")
			}
			// Deleting again is not an error.
			if err := c.Delete(rec.Key); err != nil {
				t.Errorf("Delete of a missing key failed: %v", err)
			}
		})
	}
}

func TestFetchReturnsCopy(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleRecord()
			if err := c.Store(rec.Key, rec, time.Now()); err != nil {
				t.Fatal(err)
			}

			first, _, _ := c.Fetch(rec.Key)
			first.Envelope.Subject = "Mutated"
			first.Envelope.To[0] = "evil@example.com"

			second, _, ok := c.Fetch(rec.Key)
			if !ok {
				t.Fatal("record missing")
			}
			if second.Envelope.Subject != "Test" || second.Envelope.To[0] != "user@example.com" {
				t.Error("caller mutation leaked into cache state")
			}
		})
	}
}

func TestMemoryLen(t *testing.T) {
	c := NewMemory()
	if c.Len() != 0 {
		t.Errorf("fresh cache has %d entries", c.Len())
	}

	rec := sampleRecord()
	_ = c.Store("a", rec, time.Now())
	_ = c.Store("b", rec, time.Now())
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Error("Close did not drop entries")
	}
}

func TestSQLitePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcache.db")

	c, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := sampleRecord()
	if err := c.Store(rec.Key, rec, time.Unix(1700000000, 0)); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	got, _, ok := c.Fetch(rec.Key)
	if !ok {
		t.Fatal("record lost across reopen")
	}
	if got.Envelope == nil || got.Envelope.Subject != "Test" {
		t.Errorf("reloaded record corrupt: %+v", got)
	}
}
