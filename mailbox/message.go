package mailbox

import "time"

// Message is one in-memory record for a message known to a mailbox.
// The owning mailbox handle holds the record collection; backends mutate
// records only through scan, check and sync operations.
type Message struct {
	// Path locates the backing file relative to the mailbox root,
	// e.g. "cur/1694000000.R123.host:2,FS".
	Path string

	// Key is the flag-independent part of the filename. It is derived
	// from Path at adoption time and never changes for the lifetime of
	// the record.
	Key string

	Flagged bool
	Replied bool
	Read    bool
	Old     bool

	// Deleted and Trashed are tracked separately but kept in lockstep by
	// sync, except when the flag-safe policy protects flagged messages
	// from deletion.
	Deleted bool
	Trashed bool

	// Purge marks a record whose backing file is confirmed gone. Purged
	// records are dropped from the collection when indices are rebuilt.
	Purge bool

	// ExtraFlags holds maildir flag letters this engine does not
	// recognize. They are preserved verbatim and written back sorted
	// byte-wise so that round-tripping through foreign writers converges.
	ExtraFlags string

	Size     int64
	Received time.Time

	// Envelope holds the parsed header metadata, or nil when the header
	// has not been parsed yet.
	Envelope *Envelope

	// Active is true when the most recent scan saw the backing file.
	Active bool

	// Changed is true when the in-memory flags differ from the last known
	// on-disk state. Check never overwrites flags of a changed record.
	Changed bool

	// Index is the display position in the owning collection.
	Index int
}

// Envelope is the parsed header metadata of a message. The message body is
// opaque to the engine; only the fields needed for flag and metadata
// extraction are kept.
type Envelope struct {
	From      string    `json:"from,omitempty"`
	To        []string  `json:"to,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Date      time.Time `json:"date,omitzero"`
}
