package domain

import "time"

// Event is one reconcilable change to client state. Concrete variants are
// dispatched by type switch, the same way Bubbletea routes its messages.
type Event interface {
	event()
}

// MessageCreated is a new message confirmed by the server. TxID is non-zero
// when the server is echoing back a command sent by this session; a created
// message with an unknown TxID (another device, another user) is simply a
// brand-new message.
type MessageCreated struct {
	Room    RoomID
	ID      MessageID
	TxID    TransactionID
	Author  UserID
	Content string
	At      time.Time
}

// MessageEdited replaces the content of an existing message. It may arrive
// before its MessageCreated under transport reordering, in which case it is
// buffered as an orphan edit until the create shows up.
type MessageEdited struct {
	Room    RoomID
	ID      MessageID
	Content string
	At      time.Time
}

// MessageDeleted removes a message. Deleting a message that is not known
// locally is a no-op, not an error.
type MessageDeleted struct {
	Room RoomID
	ID   MessageID
}

// MemberJoined adds a user to a room's member set. Duplicate joins are
// idempotent.
type MemberJoined struct {
	Room RoomID
	User UserID
	Name string
	At   time.Time
}

// MemberLeft removes a user from a room's member set.
type MemberLeft struct {
	Room RoomID
	User UserID
}

// RoomUpdated creates a room or renames an existing one.
type RoomUpdated struct {
	Room RoomID
	Name string
}

// CommandRejected is the server explicitly refusing a command sent by this
// session. The command is surfaced as failed and not retried automatically.
type CommandRejected struct {
	TxID   TransactionID
	Reason string
}

// ConnectionLost signals that the transport dropped. Pending commands stall
// and their timeout countdowns freeze until the connection comes back.
type ConnectionLost struct{}

// ConnectionRestored signals a reconnect. Countdowns resume and unconfirmed
// commands are replayed once, with their original transaction ids, so the
// server can deduplicate anything it already applied.
type ConnectionRestored struct{}

func (MessageCreated) event()     {}
func (MessageEdited) event()      {}
func (MessageDeleted) event()     {}
func (MemberJoined) event()       {}
func (MemberLeft) event()         {}
func (RoomUpdated) event()        {}
func (CommandRejected) event()    {}
func (ConnectionLost) event()     {}
func (ConnectionRestored) event() {}
