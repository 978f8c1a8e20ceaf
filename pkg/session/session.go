package session

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
)

// DefaultOrphanWindow is how long an edit referencing an unknown message is
// buffered, waiting for the create it must have overtaken in transit.
const DefaultOrphanWindow = 30 * time.Second

// Transport is the outbound half of the server boundary. Send transmits a
// command with its transaction id; sending on a dead connection may return
// a transient error, which is fine — the command is replayed on reconnect.
type Transport interface {
	Send(tx domain.TransactionID, cmd domain.Command) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(tx domain.TransactionID, cmd domain.Command) error

// Send calls f.
func (f TransportFunc) Send(tx domain.TransactionID, cmd domain.Command) error {
	return f(tx, cmd)
}

// Options configures a session. Zero values get sensible defaults.
type Options struct {
	Self            domain.UserID
	CommandTimeout  time.Duration
	OrphanWindow    time.Duration
	MentionKeywords []string
	Notifier        Notifier
	Clock           func() time.Time // test hook
}

// Session is the process-scoped coordination object for one logged-in user:
// it owns the adapter, tracker, store, and dispatcher, and runs the single
// reconcile loop that is the only mutator of canonical state. Create one at
// login, Close it at logout.
type Session struct {
	log       *zap.Logger
	clock     func() time.Time
	self      domain.UserID
	transport Transport

	adapter  *Adapter
	tracker  *Tracker
	store    *Store
	dispatch *Dispatcher

	orphanWindow time.Duration
	orphans      map[domain.RoomID]map[domain.MessageID]orphanEdit

	stop    chan struct{}
	stopped chan struct{}
}

// orphanEdit is an edit that arrived before its message's create event.
type orphanEdit struct {
	content string
	at      time.Time
	expires time.Time
}

// New constructs a session and starts its reconcile loop.
func New(log *zap.Logger, transport Transport, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.OrphanWindow <= 0 {
		opts.OrphanWindow = DefaultOrphanWindow
	}
	dispatch := NewDispatcher(log, opts.Notifier, opts.Self, opts.MentionKeywords)
	s := &Session{
		log:          log,
		clock:        opts.Clock,
		self:         opts.Self,
		transport:    transport,
		adapter:      NewAdapter(log, dispatch.Warn),
		tracker:      NewTracker(opts.CommandTimeout),
		store:        NewStore(),
		dispatch:     dispatch,
		orphanWindow: opts.OrphanWindow,
		orphans:      make(map[domain.RoomID]map[domain.MessageID]orphanEdit),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Adapter returns the inbound event queue feeding this session.
func (s *Session) Adapter() *Adapter {
	return s.adapter
}

// Store returns the read-only state store for UI consumers.
func (s *Session) Store() *Store {
	return s.store
}

// Dispatcher returns the side-effect dispatcher, so the frontend can track
// view focus.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatch
}

// Connected reports whether the live event stream is currently up, as far
// as the session knows.
func (s *Session) Connected() bool {
	return !s.tracker.Suspended()
}

// Send submits a message optimistically: it appears in the store as pending
// right away, is transmitted in the background, and resolves when the
// server echoes the transaction id back (or the timeout window closes).
func (s *Session) Send(room domain.RoomID, content string) domain.TransactionID {
	now := s.clock()
	pc := s.tracker.Submit(domain.Command{Room: room, Content: content}, now)
	s.store.AppendPending(domain.Message{
		TxID:      pc.TxID,
		Room:      room,
		Author:    s.self,
		Content:   content,
		CreatedAt: now,
		Status:    domain.StatusPending,
	})
	go s.transmit(pc)
	return pc.TxID
}

// Retry re-transmits a failed message under its original transaction id.
func (s *Session) Retry(tx domain.TransactionID) bool {
	pc, ok := s.tracker.Retry(tx, s.clock())
	if !ok {
		return false
	}
	s.store.Repend(pc.Room, tx)
	go s.transmit(pc)
	return true
}

// Discard drops a failed message for good.
func (s *Session) Discard(tx domain.TransactionID) bool {
	pc, ok := s.tracker.Discard(tx)
	if !ok {
		return false
	}
	s.store.Remove(pc.Room, tx)
	return true
}

// Cancel withdraws a still-pending message locally. If the server confirms
// it anyway, confirmation wins and the user gets a notice.
func (s *Session) Cancel(tx domain.TransactionID) bool {
	pc, ok := s.tracker.Cancel(tx)
	if !ok {
		return false
	}
	s.store.Remove(pc.Room, tx)
	return true
}

// MarkRead records the newest message the user has seen in a room.
func (s *Session) MarkRead(room domain.RoomID, id domain.MessageID) {
	s.store.MarkRead(room, id)
}

// Close tears the session down: the reconcile loop exits, further inbound
// events are ignored, and the dispatcher stops delivering.
func (s *Session) Close() {
	s.adapter.Close()
	close(s.stop)
	<-s.stopped
	s.dispatch.Close()
}

func (s *Session) transmit(pc domain.PendingCommand) {
	if err := s.transport.Send(pc.TxID, pc.Payload); err != nil {
		// Transient by definition: the command stays pending and rides the
		// next resync replay.
		s.log.Debug("send deferred", zap.Stringer("tx", pc.TxID), zap.Error(err))
	}
}

// run is the single reconcile loop. Every mutation of canonical state goes
// through here, one event at a time.
func (s *Session) run() {
	defer close(s.stopped)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.adapter.Events():
			s.apply(ev)
		case <-ticker.C:
			s.sweep(s.clock())
		}
	}
}

// apply reconciles one event. Applying the same event twice leaves state
// identical to applying it once.
func (s *Session) apply(ev domain.Event) {
	switch ev := ev.(type) {
	case domain.MessageCreated:
		s.applyCreated(ev)
	case domain.MessageEdited:
		if !s.store.Edit(ev.Room, ev.ID, ev.Content, ev.At) {
			s.bufferOrphan(ev)
		}
	case domain.MessageDeleted:
		s.store.Delete(ev.Room, ev.ID)
		s.dropOrphan(ev.Room, ev.ID)
	case domain.MemberJoined:
		s.store.Join(ev.Room, domain.Member{ID: ev.User, Name: ev.Name, JoinedAt: ev.At})
	case domain.MemberLeft:
		s.store.Leave(ev.Room, ev.User)
	case domain.RoomUpdated:
		s.store.EnsureRoom(ev.Room, ev.Name)
	case domain.CommandRejected:
		if pc, ok := s.tracker.Reject(ev.TxID); ok {
			s.store.Fail(pc.Room, ev.TxID)
			s.dispatch.Notice(fmt.Sprintf("message rejected: %s", ev.Reason))
		}
	case domain.ConnectionLost:
		s.tracker.Suspend()
		s.dispatch.Notice("connection lost")
	case domain.ConnectionRestored:
		s.tracker.Resume(s.clock())
		s.replay()
	}
}

func (s *Session) applyCreated(ev domain.MessageCreated) {
	msg := domain.Message{
		ID:        ev.ID,
		Room:      ev.Room,
		Author:    ev.Author,
		Content:   ev.Content,
		CreatedAt: ev.At,
		Status:    domain.StatusSent,
	}

	if ev.TxID != 0 {
		if pc, ok := s.tracker.Confirm(ev.TxID); ok {
			msg.TxID = ev.TxID
			s.store.Confirm(ev.TxID, msg)
			s.applyOrphan(ev.Room, ev.ID)
			if pc.Cancelled {
				s.dispatch.Notice("a message you cancelled had already reached the server")
			}
			return
		}
		// Unknown transaction id: sent from another device or session.
	}

	if s.store.Apply(msg) {
		s.applyOrphan(ev.Room, ev.ID)
		name := string(ev.Room)
		if room, ok := s.store.Room(ev.Room); ok {
			name = room.DisplayName()
		}
		s.dispatch.MessageApplied(name, msg)
	}
}

// bufferOrphan holds an edit whose create has not arrived yet.
func (s *Session) bufferOrphan(ev domain.MessageEdited) {
	room := s.orphans[ev.Room]
	if room == nil {
		room = make(map[domain.MessageID]orphanEdit)
		s.orphans[ev.Room] = room
	}
	room[ev.ID] = orphanEdit{
		content: ev.Content,
		at:      ev.At,
		expires: s.clock().Add(s.orphanWindow),
	}
}

// applyOrphan applies a buffered edit once its message exists.
func (s *Session) applyOrphan(room domain.RoomID, id domain.MessageID) {
	o, ok := s.orphans[room][id]
	if !ok {
		return
	}
	delete(s.orphans[room], id)
	s.store.Edit(room, id, o.content, o.at)
}

func (s *Session) dropOrphan(room domain.RoomID, id domain.MessageID) {
	delete(s.orphans[room], id)
}

// replay retransmits every unconfirmed command, once per restored
// connection, under the original transaction ids so the server can drop
// anything it already applied before the disconnect.
func (s *Session) replay() {
	unacked := s.tracker.Unacked()
	if len(unacked) == 0 {
		return
	}
	s.log.Info("replaying unacknowledged commands", zap.Int("count", len(unacked)))
	go func() {
		for _, pc := range unacked {
			s.transmit(pc)
		}
	}()
}

// sweep runs periodic maintenance: local timeouts and expired orphans.
func (s *Session) sweep(now time.Time) {
	for _, pc := range s.tracker.Expire(now) {
		s.store.Fail(pc.Room, pc.TxID)
		s.dispatch.Notice("message timed out, press r to retry")
	}
	for room, edits := range s.orphans {
		for id, o := range edits {
			if o.expires.After(now) {
				continue
			}
			delete(edits, id)
			s.dispatch.Warn(fmt.Sprintf("room %s: dropped edit for unknown message %s", room, id))
		}
	}
}
