package domain

import "fmt"

// RoomID is an opaque, server-assigned room identifier.
type RoomID string

// UserID is an opaque, server-assigned user identifier.
type UserID string

// MessageID is an opaque, server-assigned message identifier.
// A message that has not been confirmed yet has no MessageID; it is
// addressed by its TransactionID instead.
type MessageID string

// TransactionID is a client-generated correlation id for an outbound
// command. The server echoes it back on confirmation, which is how an
// optimistic local message is matched up with its canonical server copy.
// IDs are monotonic within a session and never reused.
type TransactionID uint64

// String renders the id in its wire form, e.g. "tx-42". Server message ids
// never take this shape, so the two id spaces cannot collide.
func (t TransactionID) String() string {
	return fmt.Sprintf("tx-%d", t)
}
