package domain

import "time"

// Member is a user known to be in a room.
type Member struct {
	ID       UserID
	Name     string
	JoinedAt time.Time
}

// Room is a read-only snapshot of one room's canonical state. Snapshots are
// deep copies: mutating one never affects the store or other consumers.
type Room struct {
	ID         RoomID
	Name       string
	Members    map[UserID]Member
	Messages   []Message // server-sequence order, pending messages at the tail
	LastRead   MessageID
	LastActive time.Time
	Unread     int
}

// DisplayName returns the room name, falling back to a member name for
// unnamed rooms.
func (r Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	for _, m := range r.Members {
		if m.Name != "" {
			return m.Name
		}
	}
	if len(r.Members) == 0 {
		return "Empty room"
	}
	return string(r.ID)
}

// Newest returns the most recent message in the room, if any.
func (r Room) Newest() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}
