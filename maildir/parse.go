package maildir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/mailbox"
)

// parseMessage opens a message file and fills in the record: size, header
// envelope, received time and filename-derived flags.
//
// Zero-length files are reported as ErrEmptyMessage and skipped by the
// caller; they are taken to be still being written by a delivery agent.
// A non-empty partial file is accepted as-is, a known soft spot the wider
// maildir ecosystem shares.
func (mb *Mailbox) parseMessage(fullPath string, isOld bool, m *mailbox.Message) (*mailbox.Message, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMessageUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMessageUnreadable, err)
	}
	if info.Size() == 0 {
		return nil, errors.ErrEmptyMessage
	}

	if m == nil {
		m = &mailbox.Message{Index: -1}
	}

	env, err := readEnvelope(f)
	if err != nil {
		// A message with an unparsable header is still a message; keep
		// the record with an empty envelope.
		mb.logger.Debug("header parse failed",
			slog.String("path", fullPath), slog.Any("error", err))
		env = &mailbox.Envelope{}
	}

	m.Size = info.Size()
	m.Envelope = env
	if !env.Date.IsZero() {
		m.Received = env.Date
	} else {
		m.Received = time.Now()
	}

	// The filename is authoritative for flags; whatever the header says
	// about status is ignored for maildir.
	m.Old = isOld
	parseFlags(m, filepath.Base(fullPath), mb.opts.FlagSafe)

	return m, nil
}

// readEnvelope parses the header bytes into the small envelope the engine
// keeps. Individual malformed fields are dropped rather than failing the
// whole parse.
func readEnvelope(r io.Reader) (*mailbox.Envelope, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return nil, err
	}
	h := mr.Header

	env := &mailbox.Envelope{}
	if subject, err := h.Subject(); err == nil {
		env.Subject = subject
	}
	if date, err := h.Date(); err == nil {
		env.Date = date
	}
	if id, err := h.MessageID(); err == nil {
		env.MessageID = id
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].Address
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, a := range to {
			env.To = append(env.To, a.Address)
		}
	}
	return env, nil
}

// delayedParsing is the second scan pass: candidates that survived
// reconciliation get their headers parsed for real. When a cache is
// injected, an unchanged message reuses its cached record and only the
// flags are re-derived from the current filename, since flags can change
// without the message body changing.
//
// Candidates that fail to parse are dropped; a single bad file never
// aborts the pass.
func (mb *Mailbox) delayedParsing(ctx context.Context, entries []*entry) {
	for _, md := range entries {
		if md == nil || md.msg == nil || md.parsed {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		fullPath := filepath.Join(mb.path, md.msg.Path)

		if cached, ok := mb.fetchCached(md.msg, fullPath); ok {
			md.msg = cached
			md.parsed = true
			continue
		}

		m, err := mb.parseMessage(fullPath, md.msg.Old, md.msg)
		if err != nil {
			mb.logger.Debug("skipping candidate",
				slog.String("path", md.msg.Path), slog.Any("error", err))
			md.msg = nil
			continue
		}
		md.msg = m
		md.parsed = true

		if mb.opts.Cache != nil {
			key := canonicalKey(m.Path)
			if err := mb.opts.Cache.Store(key, m, time.Now()); err != nil {
				mb.logger.Debug("header cache store failed",
					slog.String("key", key), slog.Any("error", err))
			}
		}
	}
}

// fetchCached looks the candidate up in the header cache and, on a valid
// hit, returns a record ready for adoption.
func (mb *Mailbox) fetchCached(probe *mailbox.Message, fullPath string) (*mailbox.Message, bool) {
	if mb.opts.Cache == nil {
		return nil, false
	}

	cached, storedAt, ok := mb.opts.Cache.Fetch(canonicalKey(probe.Path))
	if !ok {
		return nil, false
	}

	if mb.opts.VerifyCache {
		info, err := os.Stat(fullPath)
		if err != nil || changeTime(info).After(storedAt) {
			return nil, false
		}
	}

	cached.Path = probe.Path
	cached.Old = probe.Old
	cached.Index = -1
	parseFlags(cached, filepath.Base(fullPath), mb.opts.FlagSafe)
	return cached, true
}
