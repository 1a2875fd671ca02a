package maildir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/LarsHaalck/neomutt/mailbox"
)

func TestCreateMessageStaging(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	des, err := os.ReadDir(filepath.Join(dir, "tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(des) != 1 {
		t.Fatalf("expected 1 staged file, got %d", len(des))
	}
	if !strings.HasPrefix(des[0].Name(), "new.") {
		t.Errorf("staged name %q lacks the subdirectory hint prefix", des[0].Name())
	}

	if err := pm.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if des, _ = os.ReadDir(filepath.Join(dir, "tmp")); len(des) != 0 {
		t.Error("aborted file left in tmp/")
	}
}

func TestCommit(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}

	partial, err := pm.Commit(time.Time{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	re := regexp.MustCompile(`^new/\d+\.R\d+\..+$`)
	if !re.MatchString(partial) {
		t.Errorf("committed path %q malformed", partial)
	}

	data, err := os.ReadFile(filepath.Join(dir, partial))
	if err != nil {
		t.Fatalf("committed file unreadable: %v", err)
	}
	if string(data) != sampleMessage {
		t.Error("committed content mismatch")
	}

	if des, _ := os.ReadDir(filepath.Join(dir, "tmp")); len(des) != 0 {
		t.Error("staging file left behind after commit")
	}
}

func TestCommitReadHint(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(&mailbox.Message{Read: true})
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}

	partial, err := pm.Commit(time.Time{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !strings.HasPrefix(partial, "cur/") || !strings.HasSuffix(partial, ":2,S") {
		t.Errorf("read message committed as %q, want cur/ with a seen suffix", partial)
	}
}

func TestCommitDeletedHintDropped(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	// Copying a deleted message must not carry the trash marker over.
	pm, err := mb.CreateMessage(&mailbox.Message{Read: true, Deleted: true})
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}

	partial, err := pm.Commit(time.Time{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if strings.ContainsRune(partial[strings.LastIndexByte(partial, ':')+1:], 'T') {
		t.Errorf("trash marker leaked into a fresh copy: %q", partial)
	}
}

func TestCommitPreservesReceivedTime(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}

	received := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	partial, err := pm.Commit(received)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, partial))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(received) {
		t.Errorf("file mtime = %v, want %v", info.ModTime(), received)
	}
}

func TestCommitRetriesOnCollision(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}

	// Force a deterministic name sequence and occupy the first name for
	// every second the commit might land in.
	orig := random64
	defer func() { random64 = orig }()
	var n uint64
	random64 = func() uint64 { n++; return n }

	now := time.Now().Unix()
	for sec := now; sec <= now+2; sec++ {
		name := fmt.Sprintf("%d.R1.%s", sec, cachedHostname)
		writeTestMessage(t, dir, "new", name)
	}

	partial, err := pm.Commit(time.Time{})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !strings.Contains(partial, ".R2.") {
		t.Errorf("committed as %q, want the second generated name", partial)
	}
}

func TestCommittedMessageVisible(t *testing.T) {
	dir := newTestMaildir(t)
	mb := New(dir, DefaultOptions())

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if _, err := io.WriteString(pm, sampleMessage); err != nil {
		t.Fatal(err)
	}
	if _, err := pm.Commit(time.Time{}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	fresh, err := Open(context.Background(), dir, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	msgs := fresh.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Envelope == nil || msgs[0].Envelope.Subject != "Test" {
		t.Errorf("committed message not parsed on open: %+v", msgs[0].Envelope)
	}
}
