// Package hcache caches parsed message records so that unchanged messages
// are not re-parsed on every full rescan.
//
// The cache is an injected collaborator: backends call Fetch before parsing
// a message and Store after. Keys are canonical filenames (the unique part,
// excluding the mutable flag suffix), so a message keeps its cache entry
// across flag renames.
package hcache

import (
	"time"

	"github.com/LarsHaalck/neomutt/mailbox"
)

// Cache stores parsed message records keyed by canonical filename.
//
// Implementations must return records that the caller may mutate freely;
// Fetch hands out copies, never internal state.
type Cache interface {
	// Fetch returns the cached record for key and the time it was stored.
	// The stored time is the freshness watermark: a caller comparing it
	// against the file's modification time decides whether the entry is
	// still valid.
	Fetch(key string) (msg *mailbox.Message, storedAt time.Time, ok bool)

	// Store saves a record under key with the given freshness watermark.
	Store(key string, msg *mailbox.Message, storedAt time.Time) error

	// Delete removes the record for key. Deleting a missing key is not an
	// error.
	Delete(key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// clone returns a deep copy of a message record.
func clone(m *mailbox.Message) *mailbox.Message {
	cp := *m
	if m.Envelope != nil {
		env := *m.Envelope
		env.To = append([]string(nil), m.Envelope.To...)
		cp.Envelope = &env
	}
	return &cp
}
