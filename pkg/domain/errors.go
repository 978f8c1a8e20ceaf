package domain

import "errors"

// Error categories for everything that can go wrong between the client and
// the server. None of these is fatal: the worst outcome is a stale room view
// that heals on the next successful resync.
var (
	// ErrTransient is a network hiccup. Affected commands are replayed
	// automatically when the connection is restored.
	ErrTransient = errors.New("transient failure")
	// ErrRejected is the server explicitly refusing a command. Surfaced to
	// the user, never retried automatically.
	ErrRejected = errors.New("rejected by server")
	// ErrMalformed is an unparseable inbound event. The event is dropped
	// and logged.
	ErrMalformed = errors.New("malformed event")
	// ErrTimeout is a local policy decision: a command waited past its
	// window with no confirmation. The user may retry manually.
	ErrTimeout = errors.New("timed out waiting for confirmation")
)
