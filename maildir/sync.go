package maildir

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	stderrors "errors"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/mailbox"
)

// Sync commits in-memory changes back to disk. It first runs Check so
// external changes are merged, then persists every record with local
// changes in ascending index order, and finally rebuilds display indices.
//
// Per-record failures are contained: the record keeps its unsynced
// in-memory state for retry on the next pass, and the returned error
// aggregates the count.
func (mb *Mailbox) Sync(ctx context.Context) (mailbox.Status, error) {
	status, err := mb.Check(ctx)
	if err != nil {
		return status, err
	}

	failed := 0
	for _, e := range mb.msgs {
		if err := ctx.Err(); err != nil {
			return status, err
		}
		if err := mb.syncMessage(e); err != nil {
			mb.logger.Debug("sync failed",
				slog.String("path", e.Path), slog.Any("error", err))
			failed++
		}
	}

	// Refresh the stored mtimes so our own renames do not read as
	// external changes on the next check.
	mb.updateMtime()
	mb.renumber()

	if failed > 0 {
		return status, fmt.Errorf("%w: %d message(s)", errors.ErrSyncIncomplete, failed)
	}
	return status, nil
}

// syncMessage persists one record: unlink when it is deleted for real,
// otherwise rename to a filename reflecting the current flags.
func (mb *Mailbox) syncMessage(e *mailbox.Message) error {
	if e.Deleted && !mb.opts.Trash {
		if mb.opts.Cache != nil {
			_ = mb.opts.Cache.Delete(canonicalKey(e.Path))
		}
		err := os.Remove(filepath.Join(mb.path, e.Path))
		if err != nil && !os.IsNotExist(err) {
			// Absence is the goal state, so ENOENT counts as done.
			return err
		}
		e.Purge = true
		e.Changed = false
		return nil
	}

	if e.Changed || ((mb.opts.Trash || e.Trashed) && e.Deleted != e.Trashed) {
		if err := mb.rewriteFilename(e); err != nil {
			return err
		}
		if mb.opts.Cache != nil {
			key := canonicalKey(e.Path)
			if err := mb.opts.Cache.Store(key, e, time.Now()); err != nil {
				mb.logger.Debug("header cache store failed",
					slog.String("key", key), slog.Any("error", err))
			}
		}
		e.Changed = false
	}
	return nil
}

// rewriteFilename renames the backing file so its name encodes the
// record's current flags, moving it to cur/ once it is read or old.
func (mb *Mailbox) rewriteFilename(e *mailbox.Message) error {
	base := path.Base(e.Path)
	// Kill the previous flag suffix.
	if i := strings.IndexByte(base, ':'); i >= 0 {
		base = base[:i]
	}

	subdir := "new"
	if e.Read || e.Old {
		subdir = "cur"
	}
	partial := subdir + "/" + base + flagSuffix(e)

	fullPath := filepath.Join(mb.path, partial)
	oldPath := filepath.Join(mb.path, e.Path)
	if fullPath == oldPath {
		// The message hasn't really changed; skip the rename and the
		// directory mtime churn it would cause.
		return nil
	}

	// Record that the message is possibly marked as trashed on disk.
	e.Trashed = e.Deleted

	// The unique name component is already disambiguated, so a collision
	// here is a genuine error, not something to retry with a new name.
	if _, err := os.Lstat(fullPath); err == nil {
		return fmt.Errorf("%w: %s", errors.ErrRenameCollision, partial)
	}

	if err := os.Rename(oldPath, fullPath); err != nil {
		if os.IsNotExist(err) {
			return mb.renameRelocated(e, fullPath, partial)
		}
		return err
	}

	e.Path = partial
	return nil
}

// renameRelocated handles losing a rename race to another writer: the
// record's expected path vanished, so search both subdirectories for the
// message's canonical name and retry once from wherever it went.
func (mb *Mailbox) renameRelocated(e *mailbox.Message, fullPath, partial string) error {
	relocated, ok := mb.findRelocated(canonicalKey(e.Path))
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrStaleMessage, e.Path)
	}
	if err := os.Rename(filepath.Join(mb.path, relocated), fullPath); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrStaleMessage, e.Path)
	}
	e.Path = partial
	return nil
}

// pending is a message being composed into tmp/.
type pending struct {
	mb      *Mailbox
	f       *os.File
	tmpPath string
	subdir  string
	suffix  string
}

// CreateMessage opens a new temporary message file. The file lives in
// tmp/ under a name of the form <subdir>.<unique><suffix>; the subdirectory
// hint prefix is informational only and ignored by readers.
//
// Exclusive creation is retried with a fresh unique name for as long as the
// name collides; any other error aborts.
func (mb *Mailbox) CreateMessage(hint *mailbox.Message) (mailbox.PendingMessage, error) {
	subdir := "new"
	suffix := ""
	if hint != nil {
		tmp := *hint
		tmp.Deleted = false
		suffix = flagSuffix(&tmp)
		if hint.Read || hint.Old {
			subdir = "cur"
		}
	}

	mode := os.FileMode(0666) &^ mb.createMask
	for {
		name := fmt.Sprintf("%s.%s%s", subdir, newUniqueName(), suffix)
		tmpPath := filepath.Join(mb.path, "tmp", name)

		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, err
		}
		mb.logger.Debug("composing message", slog.String("path", tmpPath))
		return &pending{mb: mb, f: f, tmpPath: tmpPath, subdir: subdir, suffix: suffix}, nil
	}
}

// Write implements io.Writer.
func (p *pending) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Commit makes the composed message durable and visible.
//
// The ordering is the crash-safety invariant of the whole engine: the data
// is flushed and the handle closed before the rename that makes the name
// visible, so no reader can ever observe a filename whose content is not
// fully on disk. The rename itself is exclusive and retried indefinitely
// with fresh unique names on collision; any other error aborts.
func (p *pending) Commit(received time.Time) (string, error) {
	if err := p.f.Sync(); err != nil {
		_ = p.f.Close()
		return "", fmt.Errorf("could not flush message to disk: %w", err)
	}
	if err := p.f.Close(); err != nil {
		return "", fmt.Errorf("could not flush message to disk: %w", err)
	}

	for {
		partial := path.Join(p.subdir, newUniqueName()+p.suffix)
		fullPath := filepath.Join(p.mb.path, partial)

		p.mb.logger.Debug("renaming",
			slog.String("from", p.tmpPath), slog.String("to", fullPath))

		err := safeRename(p.tmpPath, fullPath)
		if err == nil {
			if !received.IsZero() {
				// Preserve the original arrival time when copying a
				// message between mailboxes.
				if err := os.Chtimes(fullPath, received, received); err != nil {
					return "", fmt.Errorf("unable to set time on file: %w", err)
				}
			}
			return partial, nil
		}
		if !stderrors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
}

// Abort discards the temporary file.
func (p *pending) Abort() error {
	_ = p.f.Close()
	return os.Remove(p.tmpPath)
}
