package gateway

import (
	"fmt"
	"time"

	"github.com/concord-chat/concord/pkg/domain"
)

// Frame is the wire shape of one event on the stream, inbound or outbound.
// The server pushes typed frames; the client sends "send" frames carrying a
// transaction id, which the server echoes back on the confirming "message"
// frame.
type Frame struct {
	Type    string    `json:"type"`
	Room    string    `json:"room,omitempty"`
	Seq     uint64    `json:"seq,omitempty"`
	ID      string    `json:"id,omitempty"`
	TxID    uint64    `json:"tx_id,omitempty"`
	Author  string    `json:"author,omitempty"`
	User    string    `json:"user,omitempty"`
	Name    string    `json:"name,omitempty"`
	Content string    `json:"content,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at,omitempty"`
}

// Inbound frame types.
const (
	frameMessage = "message"
	frameEdit    = "edit"
	frameDelete  = "delete"
	frameJoin    = "join"
	frameLeave   = "leave"
	frameRoom    = "room"
	frameNack    = "nack"
)

// frameSend is the outbound message command.
const frameSend = "send"

// Event converts an inbound frame to its domain event. A frame that fails
// validation is malformed; callers drop it and move on.
func (f Frame) Event() (domain.Event, error) {
	switch f.Type {
	case frameMessage:
		if f.Room == "" || f.ID == "" || f.Author == "" {
			return nil, fmt.Errorf("%w: message frame missing room, id, or author", domain.ErrMalformed)
		}
		return domain.MessageCreated{
			Room:    domain.RoomID(f.Room),
			ID:      domain.MessageID(f.ID),
			TxID:    domain.TransactionID(f.TxID),
			Author:  domain.UserID(f.Author),
			Content: f.Content,
			At:      f.At,
		}, nil
	case frameEdit:
		if f.Room == "" || f.ID == "" {
			return nil, fmt.Errorf("%w: edit frame missing room or id", domain.ErrMalformed)
		}
		return domain.MessageEdited{
			Room:    domain.RoomID(f.Room),
			ID:      domain.MessageID(f.ID),
			Content: f.Content,
			At:      f.At,
		}, nil
	case frameDelete:
		if f.Room == "" || f.ID == "" {
			return nil, fmt.Errorf("%w: delete frame missing room or id", domain.ErrMalformed)
		}
		return domain.MessageDeleted{
			Room: domain.RoomID(f.Room),
			ID:   domain.MessageID(f.ID),
		}, nil
	case frameJoin:
		if f.Room == "" || f.User == "" {
			return nil, fmt.Errorf("%w: join frame missing room or user", domain.ErrMalformed)
		}
		return domain.MemberJoined{
			Room: domain.RoomID(f.Room),
			User: domain.UserID(f.User),
			Name: f.Name,
			At:   f.At,
		}, nil
	case frameLeave:
		if f.Room == "" || f.User == "" {
			return nil, fmt.Errorf("%w: leave frame missing room or user", domain.ErrMalformed)
		}
		return domain.MemberLeft{
			Room: domain.RoomID(f.Room),
			User: domain.UserID(f.User),
		}, nil
	case frameRoom:
		if f.Room == "" {
			return nil, fmt.Errorf("%w: room frame missing room", domain.ErrMalformed)
		}
		return domain.RoomUpdated{
			Room: domain.RoomID(f.Room),
			Name: f.Name,
		}, nil
	case frameNack:
		if f.TxID == 0 {
			return nil, fmt.Errorf("%w: nack frame missing tx_id", domain.ErrMalformed)
		}
		return domain.CommandRejected{
			TxID:   domain.TransactionID(f.TxID),
			Reason: f.Reason,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", domain.ErrMalformed, f.Type)
	}
}

// Sequenced reports whether the frame participates in per-room sequence
// ordering. Lifecycle and rejection frames do not.
func (f Frame) Sequenced() bool {
	return f.Seq > 0 && f.Room != ""
}
