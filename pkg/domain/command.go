package domain

import "time"

// Command is a user-initiated action bound for the server. For now the only
// command kind is sending a message; the payload shape leaves room for more.
type Command struct {
	Room    RoomID
	Content string
}

// PendingCommand is a command sent optimistically and not yet resolved. It
// lives in the tracker from submission until a matching confirmation,
// rejection, or local timeout.
type PendingCommand struct {
	TxID        TransactionID
	Room        RoomID
	Payload     Command
	SubmittedAt time.Time
	Deadline    time.Time // wall-clock timeout; frozen while Stalled
	Retries     int
	Stalled     bool // connection lost after submission
	Cancelled   bool  // user cancelled before resolution; a confirmation still wins
	Failed      bool  // rejected or timed out, retained for retry/discard
	Err         error // why Failed: ErrRejected or ErrTimeout, nil otherwise
}
