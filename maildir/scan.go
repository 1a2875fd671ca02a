package maildir

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/mailbox"
)

// entry is the ephemeral result of scanning one directory entry. It lives
// for a single scan+reconcile cycle; adoption moves its record into the
// owning collection and clears msg.
type entry struct {
	msg    *mailbox.Message
	inode  uint64
	canon  string
	parsed bool
}

// scanDir lists one subdirectory, producing lightweight candidates without
// reading file contents. Entries starting with '.' are skipped. The result
// is sorted by inode number: files tend to be created in rough inode
// order, so the delayed parsing pass that follows reads them with better
// locality. Any stable order would be correct.
func (mb *Mailbox) scanDir(ctx context.Context, subdir string) ([]*entry, error) {
	dir := filepath.Join(mb.path, subdir)
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrDirUnreadable, dir, err)
	}

	isOld := mb.opts.MarkOld && subdir == "cur"

	entries := make([]*entry, 0, len(des))
	for _, de := range des {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := de.Name()
		if name[0] == '.' {
			continue
		}

		m := &mailbox.Message{
			Path:  path.Join(subdir, name),
			Old:   isOld,
			Index: -1,
		}
		parseFlags(m, name, mb.opts.FlagSafe)

		entries = append(entries, &entry{msg: m, inode: inodeOf(de)})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].inode < entries[j].inode
	})
	return entries, nil
}

func inodeOf(de os.DirEntry) uint64 {
	info, err := de.Info()
	if err != nil {
		return 0
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}

// Stats are the counters produced by the fast mail-count path.
type Stats struct {
	Count   int // messages, excluding trashed
	Unread  int
	Flagged int
	New     int
	HasNew  bool
}

// CheckStats walks new/ (and cur/, per the CheckCur option) without
// allocating per-entry records, counting messages and detecting new mail
// from the filenames alone.
func (mb *Mailbox) CheckStats(withCounts bool) (mailbox.Status, Stats) {
	var st Stats

	mb.checkDir("new", true, withCounts, &st)

	checkNew := !st.HasNew && mb.opts.CheckCur
	if checkNew || withCounts {
		mb.checkDir("cur", checkNew, withCounts, &st)
	}

	if st.New > 0 {
		return mailbox.StatusNewMail, st
	}
	return mailbox.StatusOK, st
}

// checkDir scans one subdirectory for new mail and/or message counts.
func (mb *Mailbox) checkDir(subdir string, checkNew, checkStats bool, st *Stats) {
	dir := filepath.Join(mb.path, subdir)

	// If the directory hasn't been modified since the user last left the
	// mailbox, there can be no recent mail in it and the scan is skipped.
	if checkNew && mb.opts.CheckRecent && !mb.opts.LastVisited.IsZero() {
		if info, err := os.Stat(dir); err == nil && info.ModTime().Before(mb.opts.LastVisited) {
			checkNew = false
		}
	}

	if !checkNew && !checkStats {
		return
	}

	des, err := os.ReadDir(dir)
	if err != nil {
		mb.logger.Debug("stats scan failed",
			slog.String("dir", dir), slog.Any("error", err))
		return
	}

	for _, de := range des {
		name := de.Name()
		if name[0] == '.' {
			continue
		}

		var flags string
		if i := strings.Index(name, ":2,"); i >= 0 {
			flags = name[i+3:]
		}
		if strings.ContainsRune(flags, 'T') {
			continue
		}

		if checkStats {
			st.Count++
			if strings.ContainsRune(flags, 'F') {
				st.Flagged++
			}
		}
		if !strings.ContainsRune(flags, 'S') {
			if checkStats {
				st.Unread++
			}
			if checkNew {
				if mb.opts.CheckRecent && !receivedSince(filepath.Join(dir, name), mb.opts.LastVisited) {
					continue
				}
				st.HasNew = true
				checkNew = false
				st.New++
				if !checkStats {
					break
				}
			}
		}
	}
}

// receivedSince reports whether the file changed after the reference time.
// Used to ensure a message counted as new actually arrived since the user
// left the mailbox.
func receivedSince(path string, since time.Time) bool {
	if since.IsZero() {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return changeTime(info).After(since)
}

// changeTime returns the inode change time, falling back to the
// modification time when the platform data is unavailable. A rename into
// the directory updates ctime but not mtime, which is exactly the event
// that delivers mail.
func changeTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
