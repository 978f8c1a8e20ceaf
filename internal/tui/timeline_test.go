package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
	"github.com/concord-chat/concord/pkg/session"
)

// fakeTransport records sent transaction ids.
type fakeTransport struct {
	mu    sync.Mutex
	sends []domain.TransactionID
}

func (f *fakeTransport) Send(tx domain.TransactionID, _ domain.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, tx)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func testRoom() domain.Room {
	now := time.Now()
	return domain.Room{
		ID:   "general",
		Name: "general",
		Members: map[domain.UserID]domain.Member{
			"alice": {ID: "alice", Name: "alice"},
			"bob":   {ID: "bob", Name: "bob"},
		},
		Messages: []domain.Message{
			{ID: "m1", Room: "general", Author: "bob", Content: "hello there", CreatedAt: now.Add(-2 * time.Minute), Status: domain.StatusSent},
			{ID: "m2", Room: "general", Author: "bob", Content: "fixed now", CreatedAt: now.Add(-time.Minute), EditedAt: now, Status: domain.StatusSent},
			{TxID: 1, Room: "general", Author: "alice", Content: "on my way", CreatedAt: now, Status: domain.StatusPending},
			{TxID: 2, Room: "general", Author: "alice", Content: "did not make it", CreatedAt: now, Status: domain.StatusFailed},
		},
	}
}

func newViewModel() timelineModel {
	m := newTimelineModel(nil, "alice")
	m = m.setRoom(testRoom())
	m.width = 100
	m.height = 20
	return m
}

func TestTimelineRendersMessageStatuses(t *testing.T) {
	view := newViewModel().View()

	if !strings.Contains(view, "hello there") {
		t.Error("view missing sent message body")
	}
	if !strings.Contains(view, "(edited)") {
		t.Error("view missing edited marker")
	}
	if !strings.Contains(view, "…") {
		t.Error("view missing pending marker")
	}
	if !strings.Contains(view, "✗ failed") {
		t.Error("view missing failed marker")
	}
}

func TestTimelineEmptyRoom(t *testing.T) {
	m := newTimelineModel(nil, "alice")
	m = m.setRoom(domain.Room{ID: "void", Name: "void"})
	m.width = 80
	m.height = 10

	if !strings.Contains(m.View(), "no messages yet") {
		t.Error("view missing empty placeholder")
	}
}

func TestSelectionDefaultsToNewest(t *testing.T) {
	m := newViewModel()

	msg, ok := m.selected()
	if !ok {
		t.Fatal("selected() returned no message")
	}
	if msg.TxID != 2 {
		t.Errorf("selected tx = %d, want 2 (newest)", msg.TxID)
	}
}

func TestSelectionMovesWithArrows(t *testing.T) {
	m := newViewModel()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if msg, _ := m.selected(); msg.TxID != 1 {
		t.Errorf("after up: selected tx = %d, want 1", msg.TxID)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if msg, _ := m.selected(); msg.ID != "m2" {
		t.Errorf("after two ups: selected id = %q, want m2", msg.ID)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if msg, _ := m.selected(); msg.TxID != 1 {
		t.Errorf("after down: selected tx = %d, want 1", msg.TxID)
	}
}

func TestComposerSendSubmitsCommand(t *testing.T) {
	transport := &fakeTransport{}
	sess := session.New(zap.NewNop(), transport, session.Options{Self: "alice"})
	defer sess.Close()
	sess.Store().EnsureRoom("general", "general")
	room, _ := sess.Store().Room("general")

	m := newTimelineModel(sess, "alice")
	m = m.setRoom(room)
	m.width = 80
	m.height = 10

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	if !m.composing() {
		t.Fatal("composer not focused after i")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi all")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	waitFor(t, func() bool { return transport.count() == 1 })

	room, _ = sess.Store().Room("general")
	if len(room.Messages) != 1 || room.Messages[0].Status != domain.StatusPending {
		t.Fatalf("store messages = %+v, want one pending", room.Messages)
	}
	if room.Messages[0].Content != "hi all" {
		t.Errorf("pending content = %q, want %q", room.Messages[0].Content, "hi all")
	}
}

func TestRetryKeyRetransmitsFailedMessage(t *testing.T) {
	transport := &fakeTransport{}
	sess := session.New(zap.NewNop(), transport, session.Options{Self: "alice"})
	defer sess.Close()
	sess.Store().EnsureRoom("general", "general")

	tx := sess.Send("general", "doomed")
	waitFor(t, func() bool { return transport.count() == 1 })

	sess.Adapter().Signal(domain.CommandRejected{TxID: tx, Reason: "slow down"})
	waitFor(t, func() bool {
		room, _ := sess.Store().Room("general")
		return len(room.Messages) == 1 && room.Messages[0].Status == domain.StatusFailed
	})

	room, _ := sess.Store().Room("general")
	m := newTimelineModel(sess, "alice")
	m = m.setRoom(room)
	m.width = 80
	m.height = 10

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	waitFor(t, func() bool { return transport.count() == 2 })

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.sends[0] != transport.sends[1] {
		t.Errorf("retry used tx %s, want original %s", transport.sends[1], transport.sends[0])
	}
	if m.status == "" {
		t.Error("status line empty after retry")
	}
}

func TestDiscardKeyRemovesFailedMessage(t *testing.T) {
	transport := &fakeTransport{}
	sess := session.New(zap.NewNop(), transport, session.Options{Self: "alice"})
	defer sess.Close()
	sess.Store().EnsureRoom("general", "general")

	tx := sess.Send("general", "doomed")
	sess.Adapter().Signal(domain.CommandRejected{TxID: tx, Reason: "no"})
	waitFor(t, func() bool {
		room, _ := sess.Store().Room("general")
		return len(room.Messages) == 1 && room.Messages[0].Status == domain.StatusFailed
	})

	room, _ := sess.Store().Room("general")
	m := newTimelineModel(sess, "alice")
	m = m.setRoom(room)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})

	room, _ = sess.Store().Room("general")
	if len(room.Messages) != 0 {
		t.Errorf("messages after discard = %d, want 0", len(room.Messages))
	}
	if m.status != "discarded" {
		t.Errorf("status = %q, want discarded", m.status)
	}
}

func TestOpenKeyWithoutLink(t *testing.T) {
	m := newViewModel()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	if m.status != "no link in message" {
		t.Errorf("status = %q, want no-link notice", m.status)
	}
}
