package domain

import "time"

// MessageStatus is the delivery state of a message as seen locally.
type MessageStatus int

const (
	// StatusPending means the message was sent by this session and the
	// server has not confirmed it yet.
	StatusPending MessageStatus = iota
	// StatusSent means the server confirmed the message and assigned it a
	// canonical id.
	StatusSent
	// StatusFailed means the send was rejected or timed out. The user can
	// retry or discard it.
	StatusFailed
)

func (s MessageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a single chat message in a room. A confirmed message carries a
// server MessageID; an unconfirmed one is identified by its TransactionID.
type Message struct {
	ID        MessageID
	TxID      TransactionID // set for messages sent by this session
	Room      RoomID
	Author    UserID
	Content   string
	CreatedAt time.Time
	EditedAt  time.Time // zero if never edited
	Status    MessageStatus
}

// Key returns the identity used to address this message in a room's order:
// the server id once confirmed, the transaction id before that.
func (m Message) Key() string {
	if m.ID != "" {
		return string(m.ID)
	}
	return m.TxID.String()
}

// Edited reports whether the message has been edited.
func (m Message) Edited() bool {
	return !m.EditedAt.IsZero()
}
