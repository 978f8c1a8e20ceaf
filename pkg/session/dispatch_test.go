package session

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
)

// chanNotifier feeds delivered notifications to a channel for assertions.
type chanNotifier chan notice

func (c chanNotifier) Notify(title, body string) error {
	c <- notice{title: title, body: body}
	return nil
}

func sentBy(author domain.UserID, room domain.RoomID, content string) domain.Message {
	return domain.Message{
		ID: "m1", Room: room, Author: author, Content: content,
		CreatedAt: time.Now(), Status: domain.StatusSent,
	}
}

func expectNotice(t *testing.T, ch chanNotifier) notice {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
		return notice{}
	}
}

func expectSilence(t *testing.T, ch chanNotifier) {
	t.Helper()
	select {
	case n := <-ch:
		t.Fatalf("unexpected notification %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherNotifiesForOtherUsers(t *testing.T) {
	ch := make(chanNotifier, 1)
	d := NewDispatcher(zap.NewNop(), ch, "me", nil)
	defer d.Close()

	d.MessageApplied("general", sentBy("alice", "r1", "hello"))

	n := expectNotice(t, ch)
	if n.title != "general" {
		t.Errorf("title = %q, want %q", n.title, "general")
	}
	if n.body != "hello" {
		t.Errorf("body = %q, want %q", n.body, "hello")
	}
}

func TestDispatcherIgnoresOwnMessages(t *testing.T) {
	ch := make(chanNotifier, 1)
	d := NewDispatcher(zap.NewNop(), ch, "me", nil)
	defer d.Close()

	d.MessageApplied("general", sentBy("me", "r1", "my own words"))
	expectSilence(t, ch)
}

func TestDispatcherSuppressesFocusedRoom(t *testing.T) {
	ch := make(chanNotifier, 1)
	d := NewDispatcher(zap.NewNop(), ch, "me", nil)
	defer d.Close()

	d.SetFocus("r1", true)
	d.MessageApplied("general", sentBy("alice", "r1", "hello"))
	expectSilence(t, ch)

	d.MessageApplied("other", sentBy("alice", "r2", "psst"))
	if n := expectNotice(t, ch); n.title != "other" {
		t.Errorf("title = %q, want %q", n.title, "other")
	}
}

func TestDispatcherMentionOverridesFocus(t *testing.T) {
	ch := make(chanNotifier, 1)
	d := NewDispatcher(zap.NewNop(), ch, "me", []string{"Morgan"})
	defer d.Close()

	d.SetFocus("r1", true)
	d.MessageApplied("general", sentBy("alice", "r1", "hey morgan, look at this"))

	if n := expectNotice(t, ch); n.body == "" {
		t.Error("mention in the focused room should still notify")
	}
}

func TestDispatcherSwallowsNotifierErrors(t *testing.T) {
	calls := make(chan struct{}, 2)
	failing := NotifierFunc(func(_, _ string) error {
		calls <- struct{}{}
		return errors.New("permission denied")
	})
	d := NewDispatcher(zap.NewNop(), failing, "me", nil)
	defer d.Close()

	d.MessageApplied("general", sentBy("alice", "r1", "one"))
	d.MessageApplied("general", sentBy("alice", "r1", "two"))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("dispatcher stopped after a notifier error")
		}
	}
}

func TestDispatcherSurvivesNotifierPanic(t *testing.T) {
	ch := make(chanNotifier, 1)
	first := true
	panicky := NotifierFunc(func(title, body string) error {
		if first {
			first = false
			panic("boom")
		}
		return ch.Notify(title, body)
	})
	d := NewDispatcher(zap.NewNop(), panicky, "me", nil)
	defer d.Close()

	d.MessageApplied("general", sentBy("alice", "r1", "one"))
	d.MessageApplied("general", sentBy("alice", "r1", "two"))

	if n := expectNotice(t, ch); n.body != "two" {
		t.Errorf("body = %q, want %q (delivery continues past a panic)", n.body, "two")
	}
}

func TestDispatcherNilNotifierIsSafe(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, "me", nil)
	defer d.Close()

	d.MessageApplied("general", sentBy("alice", "r1", "hello"))
	d.Notice("informational")
	// Nothing to assert beyond not panicking; give delivery a beat.
	time.Sleep(20 * time.Millisecond)
}
