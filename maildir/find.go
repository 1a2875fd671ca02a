package maildir

import (
	"os"
	"path"
	"path/filepath"
)

// findRelocated searches both subdirectories for a message whose canonical
// name matches, for when a record's stored path vanished underneath us.
// This walk is expensive, but it runs rarely.
//
// The probe order is biased by per-handle counters remembering which
// subdirectory most recently won such a lookup, amortizing the common case
// where one subdirectory dominates.
func (mb *Mailbox) findRelocated(key string) (string, bool) {
	first, second := "cur", "new"
	if mb.newHits > mb.curHits {
		first, second = "new", "cur"
	}

	if p, ok := mb.findInSubdir(key, first); ok {
		mb.recordHit(first)
		return p, true
	}
	if p, ok := mb.findInSubdir(key, second); ok {
		mb.recordHit(second)
		return p, true
	}
	return "", false
}

func (mb *Mailbox) findInSubdir(key, subdir string) (string, bool) {
	des, err := os.ReadDir(filepath.Join(mb.path, subdir))
	if err != nil {
		return "", false
	}
	for _, de := range des {
		if canonicalKey(de.Name()) == key {
			return path.Join(subdir, de.Name()), true
		}
	}
	return "", false
}

func (mb *Mailbox) recordHit(subdir string) {
	if subdir == "new" {
		mb.newHits++
	} else {
		mb.curHits++
	}
}
