// Package maildir implements the Maildir mailbox backend: a filesystem
// message store with one file per message and message state encoded in the
// filename.
//
// Layout:
//
//	mailbox/
//	├── new/     # messages not yet seen by the user
//	├── cur/     # messages the user has seen, with a :2,<flags> suffix
//	└── tmp/     # private staging area for messages being written
//
// Writers create message files under a unique name in tmp/ and make them
// visible with an atomic rename; no locks are taken. The engine tolerates
// other processes mutating the same directories concurrently, detecting
// their changes through directory modification times and reconciling flag
// state from filenames.
//
// The package registers itself with the mailbox registry under the name
// "maildir". Import it with a blank identifier to enable maildir support:
//
//	import _ "github.com/LarsHaalck/neomutt/maildir"
//
// Then open a mailbox:
//
//	mb, err := mailbox.Open(mailbox.Config{
//	    Type: "maildir",
//	    Path: "/home/user/Mail/inbox",
//	})
package maildir
