// Package tui is the terminal frontend: a room sidebar next to a message
// timeline, fed by store snapshots. It never mutates canonical state
// directly; every action goes through the session.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concord-chat/concord/pkg/domain"
	"github.com/concord-chat/concord/pkg/session"
)

type focusArea int

const (
	focusTimeline focusArea = iota
	focusRooms
)

// roomChangedMsg carries a store change notification into the Bubbletea
// loop.
type roomChangedMsg struct {
	room domain.RoomID
}

// App is the root Bubbletea model.
type App struct {
	sess     *session.Session
	store    *session.Store
	self     domain.UserID
	updates  <-chan domain.RoomID
	cancel   func()
	rooms    []domain.Room
	active   domain.RoomID
	cursor   int
	focus    focusArea
	timeline timelineModel
	width    int
	height   int
	frame    int // logo shimmer animation frame
	online   bool
}

// NewApp creates the root model for a logged-in session.
func NewApp(sess *session.Session, self domain.UserID) App {
	updates, cancel := sess.Store().Subscribe()
	a := App{
		sess:     sess,
		store:    sess.Store(),
		self:     self,
		updates:  updates,
		cancel:   cancel,
		timeline: newTimelineModel(sess, self),
		online:   sess.Connected(),
	}
	a.reloadRooms()
	if len(a.rooms) > 0 {
		a = a.selectRoom(a.rooms[0].ID)
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.listen(), shimmerTickCmd())
}

// listen waits for the next store change. Re-issued after each message so
// the subscription keeps feeding the loop.
func (a App) listen() tea.Cmd {
	updates := a.updates
	return func() tea.Msg {
		room, ok := <-updates
		if !ok {
			return nil
		}
		return roomChangedMsg{room: room}
	}
}

func (a *App) reloadRooms() {
	ids := a.store.Rooms()
	a.rooms = make([]domain.Room, 0, len(ids))
	for _, id := range ids {
		if room, ok := a.store.Room(id); ok {
			a.rooms = append(a.rooms, room)
		}
	}
	for i, room := range a.rooms {
		if room.ID == a.active {
			a.cursor = i
			return
		}
	}
	a.cursor = 0
}

// selectRoom makes a room current: focus tracking for the dispatcher,
// read-marker advance, and a fresh timeline.
func (a App) selectRoom(id domain.RoomID) App {
	if a.active != "" && a.active != id {
		a.sess.Dispatcher().SetFocus(a.active, false)
	}
	a.active = id
	a.sess.Dispatcher().SetFocus(id, true)

	room, ok := a.store.Room(id)
	if !ok {
		return a
	}
	if newest, ok := room.Newest(); ok && newest.ID != "" {
		a.sess.MarkRead(id, newest.ID)
		room, _ = a.store.Room(id)
	}
	a.timeline = a.timeline.setRoom(room)
	a.reloadRooms()
	return a
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + help(1) = 3 lines
		a.timeline.width = msg.Width - sidebarWidth - 1
		a.timeline.height = msg.Height - 3

	case shimmerTickMsg:
		a.frame++
		a.online = a.sess.Connected()
		return a, shimmerTickCmd()

	case roomChangedMsg:
		a.reloadRooms()
		if msg.room == a.active {
			if room, ok := a.store.Room(a.active); ok {
				if a.focus == focusTimeline {
					if newest, ok := room.Newest(); ok && newest.ID != "" {
						a.sess.MarkRead(a.active, newest.ID)
						room, _ = a.store.Room(a.active)
					}
				}
				a.timeline = a.timeline.refresh(room)
			}
		}
		return a, a.listen()

	case tea.KeyMsg:
		if a.timeline.composing() {
			switch msg.String() {
			case "ctrl+c":
				a.cancel()
				return a, tea.Quit
			}
			var cmd tea.Cmd
			a.timeline, cmd = a.timeline.Update(msg)
			return a, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			a.cancel()
			return a, tea.Quit
		case "tab":
			if a.focus == focusTimeline {
				a.focus = focusRooms
			} else {
				a.focus = focusTimeline
			}
			return a, nil
		}

		if a.focus == focusRooms {
			switch msg.String() {
			case "j", "down":
				if a.cursor < len(a.rooms)-1 {
					a.cursor++
				}
			case "k", "up":
				if a.cursor > 0 {
					a.cursor--
				}
			case "enter":
				if a.cursor < len(a.rooms) {
					a = a.selectRoom(a.rooms[a.cursor].ID)
					a.focus = focusTimeline
				}
			}
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.timeline, cmd = a.timeline.Update(msg)
	return a, cmd
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)

	conn := onlineStyle.Render("● online")
	if !a.online {
		conn = offlineStyle.Render("○ reconnecting...")
	}

	logoWidth := lipgloss.Width(logo)
	pad := (a.width - logoWidth) / 2
	if pad < 0 {
		pad = 0
	}
	header := strings.Repeat(" ", pad) + logo + "\n " + conn

	bodyHeight := a.height - 3
	if bodyHeight < 2 {
		bodyHeight = 2
	}
	sidebar := renderSidebar(a.rooms, a.active, a.sidebarCursor(), bodyHeight)
	timeline := lipgloss.NewStyle().
		Width(a.timeline.width).
		Height(bodyHeight).
		Render(truncateToHeight(a.timeline.View(), bodyHeight))
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, sidebarBorderStyle.Render("│"), timeline)

	var help string
	switch {
	case a.focus == focusRooms:
		help = " " + helpEntry("j/k", "rooms") + "  " + helpEntry("enter", "open") + "  " +
			helpEntry("tab", "timeline") + "  " + helpEntry("q", "quit")
	default:
		help = " " + a.timeline.helpKeys() + "  " + helpEntry("tab", "rooms") + "  " + helpEntry("q", "quit")
	}

	return header + "\n" + body + "\n" + help
}

// sidebarCursor hides the row cursor while the timeline owns navigation.
func (a App) sidebarCursor() int {
	if a.focus == focusRooms {
		return a.cursor
	}
	return -1
}
