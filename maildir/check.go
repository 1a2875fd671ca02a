package maildir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/mailbox"
)

// Check handles arrival of new mail and reopening of the mailbox.
//
// The basic idea: see whether the new/ or cur/ subdirectory mtime advanced,
// and if so rescan the changed ones. Newly appearing files are adopted and
// flags of known messages are merged. The two subdirectories are not
// treated differently, as mail can be copied directly into cur/ by another
// agent.
//
// On a scan failure the collection is left untouched and the error is
// returned; the caller should treat the mailbox as stale until a reopen
// succeeds.
func (mb *Mailbox) Check(ctx context.Context) (mailbox.Status, error) {
	if !mb.opts.CheckNew {
		return mailbox.StatusOK, nil
	}

	stNew, err := os.Stat(filepath.Join(mb.path, "new"))
	if err != nil {
		return mailbox.StatusOK, fmt.Errorf("%w: new: %v", errors.ErrDirUnreadable, err)
	}
	stCur, err := os.Stat(filepath.Join(mb.path, "cur"))
	if err != nil {
		return mailbox.StatusOK, fmt.Errorf("%w: cur: %v", errors.ErrDirUnreadable, err)
	}

	changedNew := stNew.ModTime().After(mb.mtimeNew)
	changedCur := stCur.ModTime().After(mb.mtimeCur)
	if !changedNew && !changedCur {
		return mailbox.StatusOK, nil
	}

	mb.mtimeNew = stNew.ModTime()
	mb.mtimeCur = stCur.ModTime()

	// Fast scan of just the filenames in the changed subdirectories.
	var entries []*entry
	if changedNew {
		es, err := mb.scanDir(ctx, "new")
		if err != nil {
			return mailbox.StatusOK, err
		}
		entries = append(entries, es...)
	}
	if changedCur {
		es, err := mb.scanDir(ctx, "cur")
		if err != nil {
			return mailbox.StatusOK, err
		}
		entries = append(entries, es...)
	}

	// Key the candidates by canonical (sans flags) filename for the
	// correlation loop below.
	byName := make(map[string]*entry, len(entries))
	for _, md := range entries {
		md.canon = canonicalKey(md.msg.Path)
		byName[md.canon] = md
	}

	occult := false       // messages were removed from the mailbox
	flagsChanged := false // message flags changed in the mailbox

	for _, e := range mb.msgs {
		e.Active = false
		md, ok := byName[canonicalKey(e.Path)]
		switch {
		case ok && md.msg != nil:
			// Message still exists; merge flags.
			e.Active = true

			// It may have moved to a different subdirectory or been
			// renamed with different flags by another process.
			if e.Path != md.msg.Path {
				e.Path = md.msg.Path
			}

			// Only merge detected flags if the user hasn't modified
			// this message locally.
			if !e.Changed && mergeFlags(e, md.msg) {
				flagsChanged = true
			}

			// An externally applied or removed trash marker shows up
			// as a deleted/trashed mismatch; promote the on-disk
			// state.
			if e.Deleted == e.Trashed {
				if e.Deleted != md.msg.Deleted {
					e.Deleted = md.msg.Deleted
					flagsChanged = true
				}
			}
			e.Trashed = md.msg.Trashed

			// The candidate duplicates an existing record; consume it.
			md.msg = nil

		case (changedNew && strings.HasPrefix(e.Path, "new/")) ||
			(changedCur && strings.HasPrefix(e.Path, "cur/")):
			// Not in the fresh scan of the subdirectory it lived in:
			// the message disappeared out from under us. Simulate a
			// reopen event.
			occult = true
			e.Deleted = true
			e.Purge = true

		default:
			// Its subdirectory was not rescanned, so absence proves
			// nothing; assume the message is still present.
			e.Active = true
		}
	}

	// Candidates not consumed above are genuinely new.
	mb.delayedParsing(ctx, entries)
	numNew := mb.adopt(entries)

	if occult {
		mb.renumber()
	}

	switch {
	case occult:
		return mailbox.StatusReopened, nil
	case numNew > 0:
		return mailbox.StatusNewMail, nil
	case flagsChanged:
		return mailbox.StatusFlags, nil
	default:
		return mailbox.StatusOK, nil
	}
}

// mergeFlags overwrites dst's filename-derived flags with the freshly
// scanned state and reports whether anything changed. Deleted/trashed are
// reconciled separately; old is positional, not merged.
func mergeFlags(dst, src *mailbox.Message) bool {
	changed := dst.Flagged != src.Flagged ||
		dst.Replied != src.Replied ||
		dst.Read != src.Read ||
		dst.ExtraFlags != src.ExtraFlags

	dst.Flagged = src.Flagged
	dst.Replied = src.Replied
	dst.Read = src.Read
	dst.ExtraFlags = src.ExtraFlags
	return changed
}
