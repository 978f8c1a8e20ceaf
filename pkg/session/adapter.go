package session

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
)

// reorderWindow is how many out-of-order frames the adapter will hold per
// room before giving up on the gap and releasing what it has.
const reorderWindow = 32

// Adapter normalizes inbound server frames and local lifecycle signals into
// a single queue of domain events. Frames for the same room are released in
// server sequence order; frames the transport delivered out of order are
// held back until their predecessors arrive. Cross-room ordering is
// whatever the transport produced.
//
// Push and Signal are safe to call from any goroutine; the queue is drained
// by the session's single reconcile loop.
type Adapter struct {
	log  *zap.Logger
	warn func(string)

	mu     sync.Mutex
	out    chan domain.Event
	rooms  map[domain.RoomID]*sequencer
	closed bool
}

type sequencer struct {
	next uint64 // next expected sequence; 0 until the first frame arrives
	held map[uint64]domain.Event
}

// NewAdapter creates an adapter. warn receives human-readable diagnostics
// for dropped or reordered frames; it must not block.
func NewAdapter(log *zap.Logger, warn func(string)) *Adapter {
	if warn == nil {
		warn = func(string) {}
	}
	return &Adapter{
		log:   log,
		warn:  warn,
		out:   make(chan domain.Event, 256),
		rooms: make(map[domain.RoomID]*sequencer),
	}
}

// Events returns the ordered event queue. It is never closed; consumers
// stop reading when the session shuts down.
func (a *Adapter) Events() <-chan domain.Event {
	return a.out
}

// Push enqueues a sequenced room event. The first frame seen for a room
// establishes its sequence baseline; frames at or below an already released
// sequence are dropped as duplicates.
func (a *Adapter) Push(room domain.RoomID, seq uint64, ev domain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	sq := a.rooms[room]
	if sq == nil {
		sq = &sequencer{held: make(map[uint64]domain.Event)}
		a.rooms[room] = sq
	}

	switch {
	case sq.next == 0:
		sq.next = seq
	case seq < sq.next:
		a.log.Debug("dropping duplicate frame",
			zap.String("room", string(room)), zap.Uint64("seq", seq))
		return
	}

	sq.held[seq] = ev
	a.drain(room, sq)

	if len(sq.held) > reorderWindow {
		a.flush(room, sq)
	}
}

// Signal enqueues an unsequenced event: connection lifecycle, room metadata,
// command rejections.
func (a *Adapter) Signal(ev domain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.out <- ev
}

// Malformed records an unparseable inbound frame. The frame is dropped and
// surfaced as a non-fatal warning, never an error.
func (a *Adapter) Malformed(err error) {
	a.log.Warn("dropping malformed frame", zap.Error(err))
	a.warn(fmt.Sprintf("dropped malformed server event: %v", err))
}

// Reset clears per-room sequence baselines. Called when a connection is
// re-established and the server restarts its stream numbering.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for room, sq := range a.rooms {
		a.flush(room, sq)
		delete(a.rooms, room)
	}
}

// Close makes all further pushes no-ops. Events already queued remain
// readable.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// drain releases consecutively sequenced held events.
func (a *Adapter) drain(room domain.RoomID, sq *sequencer) {
	for {
		ev, ok := sq.held[sq.next]
		if !ok {
			return
		}
		delete(sq.held, sq.next)
		sq.next++
		a.out <- ev
	}
}

// flush gives up waiting on a sequence gap: everything held is released in
// ascending order and the baseline jumps past it.
func (a *Adapter) flush(room domain.RoomID, sq *sequencer) {
	if len(sq.held) == 0 {
		return
	}
	seqs := make([]uint64, 0, len(sq.held))
	for seq := range sq.held {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	missing := seqs[len(seqs)-1] + 1 - sq.next - uint64(len(seqs))
	for _, seq := range seqs {
		a.out <- sq.held[seq]
		delete(sq.held, seq)
	}
	sq.next = seqs[len(seqs)-1] + 1
	a.log.Warn("sequence gap abandoned",
		zap.String("room", string(room)), zap.Uint64("missing", missing))
	a.warn(fmt.Sprintf("room %s: gave up waiting for %d missing events", room, missing))
}
