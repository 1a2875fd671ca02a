package maildir

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/hcache"
	"github.com/LarsHaalck/neomutt/mailbox"
)

// Options control mailbox behavior. The zero value disables every policy;
// use DefaultOptions for the conventional defaults.
type Options struct {
	// MarkOld treats messages found in cur/ as old.
	MarkOld bool

	// Trash keeps deleted messages on disk as trashed files instead of
	// unlinking them at sync time.
	Trash bool

	// FlagSafe protects flagged messages from deletion: a flagged file
	// carrying the 'T' flag is trashed but not marked deleted.
	FlagSafe bool

	// CheckNew enables change detection; with it unset Check reports
	// StatusOK without touching the filesystem.
	CheckNew bool

	// CheckCur makes the fast stats path also look for new mail in cur/
	// when new/ had none.
	CheckCur bool

	// CheckRecent skips the fast new-mail scan entirely when the
	// directory has not been modified since LastVisited. This trades a
	// rare false negative under clock skew for not reading the directory
	// on every poll.
	CheckRecent bool

	// VerifyCache compares a message file's modification time against the
	// cache watermark before trusting a cached record.
	VerifyCache bool

	// LastVisited is when the user last left this mailbox; it feeds the
	// CheckRecent optimization.
	LastVisited time.Time

	// Cache, when non-nil, is consulted before parsing message headers.
	Cache hcache.Cache

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the conventional policy set: change detection on,
// cur/ implies old, recent-mail mtime skip on, cache verification on.
func DefaultOptions() Options {
	return Options{
		MarkOld:     true,
		CheckNew:    true,
		CheckRecent: true,
		VerifyCache: true,
	}
}

// Mailbox is an open maildir. All operations are synchronous and must be
// invoked serially; tolerance of concurrent mutation by other processes
// comes from the maildir protocol itself, not from locking.
type Mailbox struct {
	path   string
	opts   Options
	logger *slog.Logger

	msgs []*mailbox.Message

	// Last observed modification times of the two scanned subdirectories.
	// Check rescans a subdirectory only when its mtime advanced.
	mtimeNew time.Time
	mtimeCur time.Time

	// createMask is learned from the mailbox directory mode and applied
	// to files this handle creates.
	createMask os.FileMode

	// Adaptive counters biasing which subdirectory a relocated-message
	// search probes first. Scoped to the handle so that multiple open
	// mailboxes do not cross-contaminate.
	newHits uint
	curHits uint
}

// New creates a handle for the given path without scanning it. The handle
// is sufficient for CheckStats; use Open to load the message collection.
func New(path string, opts Options) *Mailbox {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	mb := &Mailbox{path: path, opts: opts, logger: opts.Logger}
	mb.learnCreateMask()
	return mb
}

// Open reads a maildir mailbox: both subdirectories are scanned and every
// message is parsed into the record collection.
func Open(ctx context.Context, path string, opts Options) (*Mailbox, error) {
	mb := New(path, opts)
	for _, subdir := range []string{"new", "cur"} {
		entries, err := mb.scanDir(ctx, subdir)
		if err != nil {
			return nil, err
		}
		mb.delayedParsing(ctx, entries)
		mb.adopt(entries)
	}
	mb.updateMtime()
	return mb, nil
}

// Create creates the maildir directory structure (tmp, new, cur).
func Create(path string) error {
	for _, sub := range []string{"tmp", "new", "cur"} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0700); err != nil {
			return err
		}
	}
	return nil
}

// Probe reports whether path looks like a maildir: a directory containing
// a cur/ subdirectory.
func Probe(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	cur, err := os.Stat(filepath.Join(path, "cur"))
	return err == nil && cur.IsDir()
}

// IsEmpty reports whether the mailbox contains no messages. cur/ is
// scanned first since old messages are the more likely find.
func IsEmpty(path string) (bool, error) {
	for _, sub := range []string{"cur", "new"} {
		des, err := os.ReadDir(filepath.Join(path, sub))
		if err != nil {
			return false, errors.ErrDirUnreadable
		}
		for _, de := range des {
			if de.Name()[0] != '.' {
				return false, nil
			}
		}
	}
	return true, nil
}

// Path returns the mailbox root path.
func (mb *Mailbox) Path() string {
	return mb.path
}

// Messages returns the record collection in index order.
func (mb *Mailbox) Messages() []*mailbox.Message {
	return mb.msgs
}

// SetLastVisited updates the CheckRecent reference time.
func (mb *Mailbox) SetLastVisited(t time.Time) {
	mb.opts.LastVisited = t
}

// Close releases the handle. The on-disk state is untouched; an injected
// cache stays open since its lifetime belongs to the caller.
func (mb *Mailbox) Close() error {
	mb.msgs = nil
	return nil
}

// OpenMessage opens the backing file of the record at the given index. A
// path that vanished under another writer escalates to the relocated
// message search before failing.
func (mb *Mailbox) OpenMessage(ctx context.Context, index int) (io.ReadCloser, error) {
	if index < 0 || index >= len(mb.msgs) {
		return nil, errors.ErrMessageNotFound
	}
	e := mb.msgs[index]

	f, err := os.Open(filepath.Join(mb.path, e.Path))
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	relocated, ok := mb.findRelocated(canonicalKey(e.Path))
	if !ok {
		return nil, errors.ErrMessageNotFound
	}
	return os.Open(filepath.Join(mb.path, relocated))
}

// learnCreateMask derives the file creation mask from the mailbox
// directory mode, so created messages match the mailbox's permissions.
func (mb *Mailbox) learnCreateMask() {
	mb.createMask = 0077
	if info, err := os.Stat(mb.path); err == nil {
		mb.createMask = 0777 &^ info.Mode().Perm()
	}
}

// updateMtime refreshes the stored modification times of new/ and cur/.
// Called after scans and syncs so self-inflicted directory changes do not
// trigger a rescan.
func (mb *Mailbox) updateMtime() {
	if st, err := os.Stat(filepath.Join(mb.path, "new")); err == nil {
		mb.mtimeNew = st.ModTime()
	}
	if st, err := os.Stat(filepath.Join(mb.path, "cur")); err == nil {
		mb.mtimeCur = st.ModTime()
	}
}

// adopt moves freshly parsed candidates into the record collection and
// returns how many were added.
func (mb *Mailbox) adopt(entries []*entry) int {
	num := 0
	for _, md := range entries {
		if md == nil || md.msg == nil {
			continue
		}
		m := md.msg
		md.msg = nil

		m.Key = canonicalKey(m.Path)
		m.Active = true
		m.Index = len(mb.msgs)
		mb.msgs = append(mb.msgs, m)
		num++
	}
	return num
}

// renumber rebuilds display indices, dropping records whose backing files
// are confirmed gone.
func (mb *Mailbox) renumber() {
	kept := mb.msgs[:0]
	for _, e := range mb.msgs {
		if e.Deleted && e.Purge {
			continue
		}
		e.Index = len(kept)
		kept = append(kept, e)
	}
	// Let the tail be collected.
	for i := len(kept); i < len(mb.msgs); i++ {
		mb.msgs[i] = nil
	}
	mb.msgs = kept
}

// safeRename renames src to dst, failing with fs.ErrExist when dst already
// exists. Plain rename replaces silently, so the name is first pinned with
// a hard link; tmp/, new/ and cur/ share a filesystem by construction.
func safeRename(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

var _ mailbox.Mailbox = (*Mailbox)(nil)
var _ mailbox.DeliveryAgent = (*Mailbox)(nil)
