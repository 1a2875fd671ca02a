package maildir

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/LarsHaalck/neomutt/mailbox"
)

var (
	// nameCounter disambiguates fallback names when the random source
	// fails.
	nameCounter uint64
	// cachedHostname is set once at startup.
	cachedHostname string
	// random64 is swappable so tests can force name collisions.
	random64 = rand64
)

func init() {
	cachedHostname = getHostname()
}

// canonicalKey reduces a maildir filename to its flag-independent identity.
// Any directory prefix is stripped, then the name is truncated at the first
// ',' or ':'. The format is <unique>:2,<flags>, but foreign writers may
// insert comma-separated fields before the flag suffix.
func canonicalKey(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, ",:"); i >= 0 {
		name = name[:i]
	}
	return name
}

// parseFlags derives flag state from a maildir filename. The filename is
// authoritative: flags embedded in message headers are ignored for maildir.
//
// With flagSafe set, a flagged message carrying 'T' is trashed on disk but
// not marked deleted, protecting it from the next expunge.
func parseFlags(m *mailbox.Message, name string, flagSafe bool) {
	m.Flagged = false
	m.Read = false
	m.Replied = false
	m.ExtraFlags = ""

	i := strings.LastIndexByte(name, ':')
	if i < 0 || !strings.HasPrefix(name[i+1:], "2,") {
		return
	}

	var extra []byte
	for _, c := range []byte(name[i+3:]) {
		switch c {
		case 'F':
			m.Flagged = true
		case 'R':
			m.Replied = true
		case 'S':
			m.Read = true
		case 'T':
			if !m.Flagged || !flagSafe {
				m.Trashed = true
				m.Deleted = true
			}
		default:
			extra = append(extra, c)
		}
	}
	m.ExtraFlags = string(extra)
}

// flagSuffix generates the ":2,<flags>" filename suffix for a record.
//
// Every file in cur/ must carry the suffix even when no flags are set, so a
// record destined for cur/ (read or old) gets at least ":2,". Files headed
// for new/ omit the suffix entirely when nothing is set.
func flagSuffix(m *mailbox.Message) string {
	if !m.Flagged && !m.Replied && !m.Read && !m.Deleted && !m.Old && m.ExtraFlags == "" {
		return ""
	}

	var b []byte
	if m.Flagged {
		b = append(b, 'F')
	}
	if m.Replied {
		b = append(b, 'R')
	}
	if m.Read {
		b = append(b, 'S')
	}
	if m.Deleted {
		b = append(b, 'T')
	}
	b = append(b, m.ExtraFlags...)
	if m.ExtraFlags != "" {
		// Maildir readers may reorder flags; sorting is what makes
		// round-trips through multiple writers converge.
		slices.Sort(b)
	}
	return ":2," + string(b)
}

// newUniqueName produces a collision-resistant maildir base name:
// <epoch-seconds>.R<64-bit-random>.<hostname>. Collisions are handled by
// the caller, which retries with a fresh name on a file-exists error.
func newUniqueName() string {
	return fmt.Sprintf("%d.R%d.%s", time.Now().Unix(), random64(), cachedHostname)
}

func rand64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fallback to a counter-based value if the random source fails.
		return uint64(time.Now().UnixNano()) + atomic.AddUint64(&nameCounter, 1)
	}
	return binary.BigEndian.Uint64(b[:])
}

// getHostname returns the sanitized system hostname.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return sanitizeHostname(hostname)
}

// sanitizeHostname removes or replaces characters that are problematic in
// maildir filenames.
func sanitizeHostname(hostname string) string {
	hostname = strings.ReplaceAll(hostname, "/", "_")
	hostname = strings.ReplaceAll(hostname, ":", "_")
	hostname = strings.ReplaceAll(hostname, "\x00", "")
	return hostname
}
