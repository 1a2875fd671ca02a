package maildir

import (
	"context"

	"github.com/LarsHaalck/neomutt/errors"
	"github.com/LarsHaalck/neomutt/mailbox"
)

func init() {
	mailbox.Register(mailbox.Backend{
		Name: "maildir",
		Open: func(config mailbox.Config) (mailbox.Mailbox, error) {
			if config.Path == "" {
				return nil, errors.ErrBackendConfigInvalid
			}
			opts := DefaultOptions()
			// Policy toggles; anything unset keeps its default.
			if v, ok := config.Options["mark_old"]; ok {
				opts.MarkOld = v == "true"
			}
			if v, ok := config.Options["trash"]; ok {
				opts.Trash = v == "true"
			}
			if v, ok := config.Options["flag_safe"]; ok {
				opts.FlagSafe = v == "true"
			}
			if v, ok := config.Options["check_cur"]; ok {
				opts.CheckCur = v == "true"
			}
			return Open(context.Background(), config.Path, opts)
		},
		Probe: Probe,
	})
}
