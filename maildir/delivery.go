package maildir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	stderrors "errors"

	gosieve "git.sr.ht/~emersion/go-sieve"

	"github.com/LarsHaalck/neomutt/errors"
)

// Deliver writes a message to the mailbox using the safe delivery process:
// the content goes to tmp/ first and becomes visible in new/ only through
// the commit rename. Returns the delivered path relative to the mailbox
// root.
func (mb *Mailbox) Deliver(ctx context.Context, message io.Reader) (string, error) {
	if !Probe(mb.path) {
		return "", fmt.Errorf("%w: %s", errors.ErrNotMaildir, mb.path)
	}

	if cmds, err := mb.loadSieveScript(); err != nil {
		// Fail-safe: a broken script must never lose mail, so delivery
		// falls through to the default location.
		mb.logger.Warn("ignoring sieve script", slog.Any("error", err))
	} else if cmds != nil {
		// TODO: execute fileinto/discard actions once go-sieve ships its
		// interpreter; until then scripts are parsed and validated only.
		mb.logger.Debug("sieve script loaded", slog.Int("commands", len(cmds)))
	}

	pm, err := mb.CreateMessage(nil)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(pm, message); err != nil {
		_ = pm.Abort()
		return "", err
	}
	if err := ctx.Err(); err != nil {
		_ = pm.Abort()
		return "", err
	}

	return pm.Commit(time.Time{})
}

// loadSieveScript loads and parses the mailbox's Sieve script from
// <mailbox>/.sieve.
//
// Returns (nil, nil) if no script exists; delivery continues normally.
// Returns (nil, err) if the script exists but fails to parse.
func (mb *Mailbox) loadSieveScript() ([]gosieve.Command, error) {
	f, err := os.Open(filepath.Join(mb.path, ".sieve"))
	if stderrors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cmds, err := gosieve.Parse(f)
	if err != nil {
		return nil, err
	}
	return cmds, nil
}
