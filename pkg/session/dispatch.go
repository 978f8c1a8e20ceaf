package session

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/concord-chat/concord/pkg/domain"
)

// Notifier delivers a user-facing side effect: a desktop notification, a
// terminal bell, whatever the frontend provides. Implementations may fail;
// failures are logged and forgotten.
type Notifier interface {
	Notify(title, body string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(title, body string) error

// Notify calls f.
func (f NotifierFunc) Notify(title, body string) error {
	return f(title, body)
}

// Dispatcher fires side effects for reconciled events after they have been
// applied to the store. Effects run on their own goroutine and can neither
// block nor roll back reconciliation; a side effect that errors is swallowed
// and logged.
type Dispatcher struct {
	log      *zap.Logger
	notifier Notifier
	self     domain.UserID
	keywords []string

	mu      sync.Mutex
	focus   domain.RoomID
	focused bool

	queue chan notice
	done  chan struct{}
}

type notice struct {
	title string
	body  string
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
// keywords are matched case-insensitively against message content and force
// a notification even for the focused room.
func NewDispatcher(log *zap.Logger, notifier Notifier, self domain.UserID, keywords []string) *Dispatcher {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}
	d := &Dispatcher{
		log:      log,
		notifier: notifier,
		self:     self,
		keywords: lowered,
		queue:    make(chan notice, 64),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// SetFocus records which room the user is currently viewing. Messages for
// the focused room do not notify unless they match a mention keyword.
func (d *Dispatcher) SetFocus(room domain.RoomID, focused bool) {
	d.mu.Lock()
	d.focus = room
	d.focused = focused
	d.mu.Unlock()
}

// MessageApplied considers a freshly applied message for notification.
func (d *Dispatcher) MessageApplied(roomName string, msg domain.Message) {
	if msg.Author == d.self || msg.Status != domain.StatusSent {
		return
	}
	d.mu.Lock()
	inFocus := d.focused && d.focus == msg.Room
	d.mu.Unlock()
	if inFocus && !d.mentions(msg.Content) {
		return
	}
	d.enqueue(notice{title: roomName, body: msg.Content})
}

// Notice surfaces an informational message (timeouts, rejections, the
// cancel-versus-confirm race) to the user.
func (d *Dispatcher) Notice(body string) {
	d.enqueue(notice{title: "concord", body: body})
}

// Warn records a non-fatal diagnostic, e.g. a dropped malformed event. It
// goes to the log only; it is never worth a popup.
func (d *Dispatcher) Warn(body string) {
	d.log.Warn(body)
}

// Close stops the delivery goroutine. Queued effects are dropped.
func (d *Dispatcher) Close() {
	close(d.done)
}

func (d *Dispatcher) mentions(content string) bool {
	if len(d.keywords) == 0 {
		return false
	}
	content = strings.ToLower(content)
	for _, kw := range d.keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) enqueue(n notice) {
	select {
	case d.queue <- n:
	default:
		d.log.Debug("notification queue full, dropping", zap.String("title", n.title))
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case n := <-d.queue:
			d.deliver(n)
		}
	}
}

func (d *Dispatcher) deliver(n notice) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notifier panicked", zap.Any("panic", r))
		}
	}()
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(n.title, n.body); err != nil {
		d.log.Warn("notification failed", zap.Error(err))
	}
}
