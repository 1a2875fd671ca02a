// Package errors provides centralized error definitions for the mailbox
// engine.
package errors

import "errors"

// Directory errors.
var (
	// ErrDirUnreadable indicates a required maildir subdirectory could not
	// be opened or listed. The mailbox should be treated as unusable until
	// it is reopened.
	ErrDirUnreadable = errors.New("directory unreadable")

	// ErrNotMaildir indicates the path does not have the maildir structure.
	ErrNotMaildir = errors.New("not a maildir")
)

// Message errors.
var (
	// ErrMessageUnreadable indicates a message file could not be opened.
	// The candidate is skipped; the enclosing scan continues.
	ErrMessageUnreadable = errors.New("message unreadable")

	// ErrEmptyMessage indicates a zero-length message file, treated as
	// not yet fully written and skipped.
	ErrEmptyMessage = errors.New("empty message")

	// ErrMessageNotFound indicates a message could not be located in
	// either subdirectory.
	ErrMessageNotFound = errors.New("message not found")
)

// Sync errors.
var (
	// ErrRenameCollision indicates a sync-time rename found an existing
	// file at the target path. The record keeps its unsynced in-memory
	// state for retry on the next sync pass.
	ErrRenameCollision = errors.New("rename collision")

	// ErrStaleMessage indicates a record's expected path vanished between
	// deciding to sync and performing the rename.
	ErrStaleMessage = errors.New("stale message path")

	// ErrSyncIncomplete indicates one or more records could not be synced.
	// Successfully synced records stay synced; failed records retain their
	// in-memory changes.
	ErrSyncIncomplete = errors.New("sync incomplete")
)

// Registry errors.
var (
	// ErrBackendNotRegistered indicates the requested mailbox backend is
	// not registered.
	ErrBackendNotRegistered = errors.New("mailbox backend not registered")

	// ErrBackendConfigInvalid indicates the backend configuration is
	// invalid.
	ErrBackendConfigInvalid = errors.New("invalid backend configuration")

	// ErrBackendUnknown indicates no registered backend recognizes the
	// path.
	ErrBackendUnknown = errors.New("unknown mailbox format")
)
