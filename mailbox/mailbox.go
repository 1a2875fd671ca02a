// Package mailbox defines the backend-facing surface of the mail store:
// the message record, the capability interfaces a mailbox backend
// implements, and a factory registry for selecting among backends.
//
// Backends register themselves in an init function. Import one with a blank
// identifier to enable it:
//
//	import _ "github.com/LarsHaalck/neomutt/maildir"
//
// Then open a mailbox:
//
//	mb, err := mailbox.Open(mailbox.Config{Path: "/home/user/Mail/inbox"})
package mailbox

import (
	"context"
	"io"
	"time"
)

// Status summarizes the outcome of a check or sync pass.
type Status int

const (
	// StatusOK means nothing changed.
	StatusOK Status = iota

	// StatusFlags means message flags were merged differently than before.
	StatusFlags

	// StatusNewMail means new messages were adopted into the collection.
	StatusNewMail

	// StatusReopened means messages vanished out from under the live view.
	// Cached positions and sort order are no longer trustworthy; the
	// caller must resynchronize as if the mailbox had been reopened.
	StatusReopened
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFlags:
		return "flags"
	case StatusNewMail:
		return "new-mail"
	case StatusReopened:
		return "reopened"
	default:
		return "unknown"
	}
}

// Checker detects external changes to an open mailbox.
type Checker interface {
	// Check rescans whatever changed since the last check and merges the
	// result into the record collection. On error the collection is left
	// untouched and the mailbox should be treated as stale.
	Check(ctx context.Context) (Status, error)
}

// Syncer commits in-memory record changes back to storage.
type Syncer interface {
	// Sync runs Check, then persists every record with local changes in
	// ascending index order and renumbers the survivors. Per-record
	// failures are contained; the returned error aggregates them.
	Sync(ctx context.Context) (Status, error)
}

// MessageOpener provides read access to a single message body.
type MessageOpener interface {
	// OpenMessage opens the backing file of the record at the given
	// index. The caller is responsible for closing the reader.
	OpenMessage(ctx context.Context, index int) (io.ReadCloser, error)
}

// MessageCreator composes new messages into a mailbox.
type MessageCreator interface {
	// CreateMessage allocates a private temporary file for a new message.
	// hint, when non-nil, supplies the flags the finished message should
	// carry; it is not retained.
	CreateMessage(hint *Message) (PendingMessage, error)
}

// PendingMessage is a message being composed. Write the full content, then
// either Commit or Abort exactly once.
type PendingMessage interface {
	io.Writer

	// Commit flushes the content to stable storage and atomically makes
	// the message visible under a fresh unique name, returning the path
	// relative to the mailbox root. A non-zero received time is applied
	// to the file's modification time, preserving original arrival time
	// when copying between mailboxes.
	Commit(received time.Time) (string, error)

	// Abort discards the temporary file.
	Abort() error
}

// DeliveryAgent files an incoming message into a mailbox using the safe
// tmp-then-rename protocol.
type DeliveryAgent interface {
	// Deliver stores the raw message and returns its path relative to the
	// mailbox root.
	Deliver(ctx context.Context, message io.Reader) (string, error)
}

// Mailbox is an open mailbox handle.
type Mailbox interface {
	Checker
	Syncer
	MessageOpener
	MessageCreator

	// Path returns the mailbox root path.
	Path() string

	// Messages returns the current record collection in index order. The
	// slice is owned by the mailbox; callers must not grow it.
	Messages() []*Message

	// Close releases the handle. It does not touch the on-disk state.
	Close() error
}
