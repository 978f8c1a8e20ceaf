package session

import (
	"sort"
	"sync"
	"time"

	"github.com/concord-chat/concord/pkg/domain"
)

// Store holds the canonical room and message state produced by
// reconciliation. Consumers only ever see copies: Room returns a deep
// snapshot taken under a read lock, so a reader can never observe a
// half-applied event and never blocks a writer for longer than the copy.
type Store struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*roomState
	subs    map[int]chan domain.RoomID
	nextSub int
}

type roomState struct {
	id         domain.RoomID
	name       string
	members    map[domain.UserID]domain.Member
	order      []string // message keys: server ids, then the pending tail
	byKey      map[string]*domain.Message
	lastRead   domain.MessageID
	lastActive time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[domain.RoomID]*roomState),
		subs:  make(map[int]chan domain.RoomID),
	}
}

// EnsureRoom creates the room if unknown and sets its name when one is
// given. Idempotent.
func (s *Store) EnsureRoom(id domain.RoomID, name string) {
	s.mu.Lock()
	r := s.room(id)
	changed := name != "" && r.name != name
	if changed {
		r.name = name
	}
	s.mu.Unlock()
	if changed {
		s.notify(id)
	}
}

// AppendPending adds an optimistic local message at the tail of its room.
func (s *Store) AppendPending(msg domain.Message) {
	s.mu.Lock()
	r := s.room(msg.Room)
	key := msg.Key()
	if _, ok := r.byKey[key]; !ok {
		m := msg
		r.byKey[key] = &m
		r.order = append(r.order, key)
		r.lastActive = msg.CreatedAt
	}
	s.mu.Unlock()
	s.notify(msg.Room)
}

// Confirm promotes the provisional message for tx to its canonical form:
// the tail entry is removed and the confirmed message is spliced into
// server order. Reapplying a confirmation for an already-known message id
// is a successful no-op.
func (s *Store) Confirm(tx domain.TransactionID, msg domain.Message) {
	s.mu.Lock()
	r := s.room(msg.Room)
	r.removeKey(tx.String())
	changed := false
	if _, ok := r.byKey[string(msg.ID)]; !ok {
		r.insertSent(msg)
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify(msg.Room)
	}
}

// Apply inserts a confirmed message from the server. Returns false if the
// message id is already known (duplicate delivery).
func (s *Store) Apply(msg domain.Message) bool {
	s.mu.Lock()
	r := s.room(msg.Room)
	if _, ok := r.byKey[string(msg.ID)]; ok {
		s.mu.Unlock()
		return false
	}
	r.insertSent(msg)
	s.mu.Unlock()
	s.notify(msg.Room)
	return true
}

// Edit replaces a message's content. Returns false when the message is not
// known locally, which the reconciler treats as an orphan edit.
func (s *Store) Edit(room domain.RoomID, id domain.MessageID, content string, at time.Time) bool {
	s.mu.Lock()
	r := s.room(room)
	msg, ok := r.byKey[string(id)]
	if !ok {
		s.mu.Unlock()
		return false
	}
	msg.Content = content
	msg.EditedAt = at
	s.mu.Unlock()
	s.notify(room)
	return true
}

// Delete removes a message. Absent messages are a no-op: the delete may
// have raced with another session or the message was never observed here.
func (s *Store) Delete(room domain.RoomID, id domain.MessageID) bool {
	s.mu.Lock()
	r := s.room(room)
	ok := r.removeKey(string(id))
	s.mu.Unlock()
	if ok {
		s.notify(room)
	}
	return ok
}

// Fail marks the pending message for tx as failed.
func (s *Store) Fail(room domain.RoomID, tx domain.TransactionID) bool {
	s.mu.Lock()
	r := s.room(room)
	msg, ok := r.byKey[tx.String()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	msg.Status = domain.StatusFailed
	s.mu.Unlock()
	s.notify(room)
	return true
}

// Repend marks a failed message as pending again for a retry.
func (s *Store) Repend(room domain.RoomID, tx domain.TransactionID) bool {
	s.mu.Lock()
	r := s.room(room)
	msg, ok := r.byKey[tx.String()]
	if !ok {
		s.mu.Unlock()
		return false
	}
	msg.Status = domain.StatusPending
	s.mu.Unlock()
	s.notify(room)
	return true
}

// Remove drops the provisional message for tx (cancel or discard).
func (s *Store) Remove(room domain.RoomID, tx domain.TransactionID) bool {
	s.mu.Lock()
	r := s.room(room)
	ok := r.removeKey(tx.String())
	s.mu.Unlock()
	if ok {
		s.notify(room)
	}
	return ok
}

// Join adds a member to a room. Duplicate joins are idempotent.
func (s *Store) Join(room domain.RoomID, member domain.Member) bool {
	s.mu.Lock()
	r := s.room(room)
	if _, ok := r.members[member.ID]; ok {
		s.mu.Unlock()
		return false
	}
	r.members[member.ID] = member
	s.mu.Unlock()
	s.notify(room)
	return true
}

// Leave removes a member from a room.
func (s *Store) Leave(room domain.RoomID, user domain.UserID) bool {
	s.mu.Lock()
	r := s.room(room)
	if _, ok := r.members[user]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(r.members, user)
	s.mu.Unlock()
	s.notify(room)
	return true
}

// MarkRead records the newest message the user has seen in a room.
func (s *Store) MarkRead(room domain.RoomID, id domain.MessageID) {
	s.mu.Lock()
	r := s.room(room)
	changed := r.lastRead != id
	r.lastRead = id
	s.mu.Unlock()
	if changed {
		s.notify(room)
	}
}

// Room returns a deep snapshot of one room.
func (s *Store) Room(id domain.RoomID) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return r.snapshot(), true
}

// Rooms returns all room ids, most recently active first. Ties break by id
// so the order is stable.
func (s *Store) Rooms() []domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.RoomID, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.rooms[ids[i]], s.rooms[ids[j]]
		if !a.lastActive.Equal(b.lastActive) {
			return a.lastActive.After(b.lastActive)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Subscribe returns a channel that receives the id of each room whose state
// changes, plus a cancel function. Delivery is best-effort: if the consumer
// lags, change notices for a room coalesce into whichever ones still fit.
func (s *Store) Subscribe() (<-chan domain.RoomID, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.RoomID, 64)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(room domain.RoomID) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- room:
		default:
		}
	}
}

// room returns the state for id, creating it lazily. Callers hold s.mu.
func (s *Store) room(id domain.RoomID) *roomState {
	r, ok := s.rooms[id]
	if !ok {
		r = &roomState{
			id:      id,
			members: make(map[domain.UserID]domain.Member),
			byKey:   make(map[string]*domain.Message),
		}
		s.rooms[id] = r
	}
	return r
}

// insertSent splices a confirmed message into server order: after every
// sent message that precedes it, before the provisional tail.
func (r *roomState) insertSent(msg domain.Message) {
	m := msg
	key := msg.Key()
	r.byKey[key] = &m

	// Find the end of the sent region.
	tail := len(r.order)
	for tail > 0 {
		prev := r.byKey[r.order[tail-1]]
		if prev.Status == domain.StatusSent {
			break
		}
		tail--
	}
	// Walk back past sent messages that are newer than msg.
	at := tail
	for at > 0 {
		prev := r.byKey[r.order[at-1]]
		if !prev.CreatedAt.After(msg.CreatedAt) {
			break
		}
		at--
	}
	r.order = append(r.order, "")
	copy(r.order[at+1:], r.order[at:])
	r.order[at] = key

	if msg.CreatedAt.After(r.lastActive) {
		r.lastActive = msg.CreatedAt
	}
}

func (r *roomState) removeKey(key string) bool {
	if _, ok := r.byKey[key]; !ok {
		return false
	}
	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *roomState) snapshot() domain.Room {
	members := make(map[domain.UserID]domain.Member, len(r.members))
	for id, m := range r.members {
		members[id] = m
	}
	msgs := make([]domain.Message, 0, len(r.order))
	unread := 0
	seenRead := r.lastRead == ""
	for _, key := range r.order {
		msg := *r.byKey[key]
		msgs = append(msgs, msg)
		if seenRead && msg.Status == domain.StatusSent {
			unread++
		}
		if msg.ID != "" && msg.ID == r.lastRead {
			seenRead = true
		}
	}
	return domain.Room{
		ID:         r.id,
		Name:       r.name,
		Members:    members,
		Messages:   msgs,
		LastRead:   r.lastRead,
		LastActive: r.lastActive,
		Unread:     unread,
	}
}
