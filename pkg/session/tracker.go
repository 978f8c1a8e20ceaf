package session

import (
	"sort"
	"sync"
	"time"

	"github.com/concord-chat/concord/pkg/domain"
)

// DefaultCommandTimeout is how long a submitted command may wait for a
// confirmation before it is failed locally. The countdown only runs while
// the connection is up.
const DefaultCommandTimeout = 30 * time.Second

// Tracker records locally initiated commands between submission and
// resolution. It allocates transaction ids, owns every pending command until
// the reconciler consumes it, and applies the local timeout policy.
type Tracker struct {
	mu        sync.Mutex
	next      uint64
	timeout   time.Duration
	entries   map[domain.TransactionID]*domain.PendingCommand
	suspended bool
}

// NewTracker creates a tracker. A zero timeout means DefaultCommandTimeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Tracker{
		timeout: timeout,
		entries: make(map[domain.TransactionID]*domain.PendingCommand),
	}
}

// Submit stores cmd as pending and returns it with a freshly allocated
// transaction id. Ids are monotonic and never reused within a session.
func (t *Tracker) Submit(cmd domain.Command, now time.Time) domain.PendingCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	pc := &domain.PendingCommand{
		TxID:        domain.TransactionID(t.next),
		Room:        cmd.Room,
		Payload:     cmd,
		SubmittedAt: now,
		Deadline:    now.Add(t.timeout),
		Stalled:     t.suspended,
	}
	t.entries[pc.TxID] = pc
	return *pc
}

// Confirm resolves tx as confirmed and removes it. Confirmation wins every
// race: it resolves entries that were cancelled, stalled, or already failed,
// because the server really did apply the command.
func (t *Tracker) Confirm(tx domain.TransactionID) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok {
		return domain.PendingCommand{}, false
	}
	delete(t.entries, tx)
	return *pc, true
}

// Reject marks tx as failed and keeps it around for a user-visible retry or
// discard. A rejection for a command the user already cancelled removes the
// entry silently.
func (t *Tracker) Reject(tx domain.TransactionID) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok || pc.Failed {
		return domain.PendingCommand{}, false
	}
	if pc.Cancelled {
		delete(t.entries, tx)
		return domain.PendingCommand{}, false
	}
	pc.Failed = true
	pc.Err = domain.ErrRejected
	return *pc, true
}

// Cancel marks a still-pending tx as cancelled by the user. The entry stays
// until a confirmation, rejection, or timeout decides the race.
func (t *Tracker) Cancel(tx domain.TransactionID) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok || pc.Failed || pc.Cancelled {
		return domain.PendingCommand{}, false
	}
	pc.Cancelled = true
	return *pc, true
}

// Retry puts a failed tx back into the pending state with a fresh deadline.
// The original transaction id is kept so the server can deduplicate.
func (t *Tracker) Retry(tx domain.TransactionID, now time.Time) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok || !pc.Failed {
		return domain.PendingCommand{}, false
	}
	pc.Failed = false
	pc.Err = nil
	pc.Retries++
	pc.Deadline = now.Add(t.timeout)
	pc.Stalled = t.suspended
	return *pc, true
}

// Discard removes a failed tx for good.
func (t *Tracker) Discard(tx domain.TransactionID) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok || !pc.Failed {
		return domain.PendingCommand{}, false
	}
	delete(t.entries, tx)
	return *pc, true
}

// Suspend freezes timeout countdowns. Called on connection loss: a command
// is never failed for timing out while there was no connection to confirm
// it on.
func (t *Tracker) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	for _, pc := range t.entries {
		if !pc.Failed {
			pc.Stalled = true
		}
	}
}

// Resume unfreezes countdowns after a reconnect. Deadlines restart in full:
// the replay that follows deserves a whole window.
func (t *Tracker) Resume(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	for _, pc := range t.entries {
		if pc.Stalled {
			pc.Stalled = false
			pc.Deadline = now.Add(t.timeout)
		}
	}
}

// Suspended reports whether countdowns are currently frozen.
func (t *Tracker) Suspended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspended
}

// Expire fails every pending command whose deadline has passed and returns
// them. Stalled commands never expire. Expired cancelled commands are
// removed without being reported; nobody is waiting on them.
func (t *Tracker) Expire(now time.Time) []domain.PendingCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []domain.PendingCommand
	for tx, pc := range t.entries {
		if pc.Failed || pc.Stalled || pc.Deadline.After(now) {
			continue
		}
		if pc.Cancelled {
			delete(t.entries, tx)
			continue
		}
		pc.Failed = true
		pc.Err = domain.ErrTimeout
		expired = append(expired, *pc)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].TxID < expired[j].TxID })
	return expired
}

// Unacked returns every command still awaiting confirmation, in submission
// order. Used to replay after a reconnect.
func (t *Tracker) Unacked() []domain.PendingCommand {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.PendingCommand
	for _, pc := range t.entries {
		if !pc.Failed && !pc.Cancelled {
			out = append(out, *pc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// Pending returns a copy of the entry for tx, if it exists.
func (t *Tracker) Pending(tx domain.TransactionID) (domain.PendingCommand, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.entries[tx]
	if !ok {
		return domain.PendingCommand{}, false
	}
	return *pc, true
}
