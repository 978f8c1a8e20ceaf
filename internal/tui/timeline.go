package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concord-chat/concord/internal/browser"
	"github.com/concord-chat/concord/pkg/domain"
	"github.com/concord-chat/concord/pkg/session"
)

// maxInputLen is the maximum number of runes allowed in the composer.
const maxInputLen = 2000

// timelineModel renders one room's message log with the composer underneath.
// The newest message sits at the bottom, next to the input. A cursor can be
// moved over messages to act on them (retry, discard, cancel, copy, open).
type timelineModel struct {
	sess   *session.Session
	self   domain.UserID
	room   domain.Room
	input  textinput.Model
	scroll int // lines scrolled up from bottom (0 = at bottom)
	sel    int // selected message index; -1 follows the newest
	status string
	width  int
	height int
}

func newTimelineModel(sess *session.Session, self domain.UserID) timelineModel {
	ti := textinput.New()
	ti.Placeholder = "say something..."
	ti.CharLimit = maxInputLen
	ti.Prompt = "> "
	ti.PromptStyle = accentStyle
	ti.PlaceholderStyle = inputPlaceholderStyle
	return timelineModel{sess: sess, self: self, input: ti, sel: -1}
}

// setRoom switches the timeline to a new room snapshot and resets transient
// view state.
func (m timelineModel) setRoom(room domain.Room) timelineModel {
	m.room = room
	m.scroll = 0
	m.sel = -1
	m.status = ""
	return m
}

// refresh replaces the room snapshot, keeping scroll and selection.
func (m timelineModel) refresh(room domain.Room) timelineModel {
	m.room = room
	if m.sel >= len(room.Messages) {
		m.sel = -1
	}
	return m
}

func (m timelineModel) composing() bool {
	return m.input.Focused()
}

// selected returns the message under the cursor, defaulting to the newest.
func (m timelineModel) selected() (domain.Message, bool) {
	msgs := m.room.Messages
	if len(msgs) == 0 {
		return domain.Message{}, false
	}
	if m.sel < 0 || m.sel >= len(msgs) {
		return msgs[len(msgs)-1], true
	}
	return msgs[m.sel], true
}

func (m timelineModel) Update(msg tea.Msg) (timelineModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.composing() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.composing() {
		return m.updateComposer(key)
	}
	return m.updateNav(key)
}

// updateComposer handles keys while the text input has focus.
func (m timelineModel) updateComposer(key tea.KeyMsg) (timelineModel, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.input.Blur()
		m.status = ""
		return m, nil
	case "enter":
		body := strings.TrimSpace(m.input.Value())
		if body == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.status = ""
		m.sess.Send(m.room.ID, body)
		m.scroll = 0
		m.sel = -1
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

// updateNav handles keys in scroll/select mode.
func (m timelineModel) updateNav(key tea.KeyMsg) (timelineModel, tea.Cmd) {
	switch key.String() {
	case "enter", "i", "/":
		m.status = ""
		return m, m.input.Focus()

	case "j":
		if m.scroll > 0 {
			m.scroll--
		}
	case "k":
		maxScroll := len(m.room.Messages) * 3
		if m.scroll < maxScroll {
			m.scroll++
		}

	case "up":
		if m.sel < 0 {
			m.sel = len(m.room.Messages) - 1
		}
		if m.sel > 0 {
			m.sel--
		}
	case "down":
		if m.sel >= 0 && m.sel < len(m.room.Messages)-1 {
			m.sel++
		} else {
			m.sel = -1
		}

	case "r":
		if msg, ok := m.selected(); ok && msg.Status == domain.StatusFailed {
			if m.sess.Retry(msg.TxID) {
				m.status = "retrying..."
			}
		}
	case "x":
		if msg, ok := m.selected(); ok && msg.Status == domain.StatusFailed {
			if m.sess.Discard(msg.TxID) {
				m.status = "discarded"
				m.sel = -1
			}
		}
	case "c":
		if msg, ok := m.selected(); ok && msg.Status == domain.StatusPending {
			if m.sess.Cancel(msg.TxID) {
				m.status = "cancelled"
				m.sel = -1
			}
		}

	case "y":
		if msg, ok := m.selected(); ok {
			if err := clipboard.WriteAll(msg.Content); err != nil {
				m.status = "copy failed: " + err.Error()
			} else {
				m.status = "copied"
			}
		}
	case "o":
		if msg, ok := m.selected(); ok {
			if url := firstURL(msg.Content); url != "" {
				browser.Open(url) //nolint:errcheck // best-effort browser open
				m.status = "opening " + truncStr(url, 40)
			} else {
				m.status = "no link in message"
			}
		}
	}
	return m, nil
}

// View renders the message log clipped to the model height, with the
// composer and transient status at the bottom.
func (m timelineModel) View() string {
	var b strings.Builder

	chrome := 1 // composer
	if m.status != "" {
		chrome++
	}
	viewportHeight := m.height - chrome
	if viewportHeight < 2 {
		viewportHeight = 2
	}

	if len(m.room.Messages) == 0 {
		padLines(viewportHeight-1, &b)
		b.WriteString(" " + dimStyle.Render("no messages yet") + "\n")
	} else {
		b.WriteString(m.renderMessages(viewportHeight))
	}

	b.WriteString(m.input.View())
	b.WriteByte('\n')

	if m.status != "" {
		b.WriteString(" " + dimStyle.Render(m.status))
	}

	return b.String()
}

// renderMessages renders the log clipped to viewportHeight lines, respecting
// the scroll offset. Newest messages appear at the bottom.
func (m timelineModel) renderMessages(viewportHeight int) string {
	var allLines []string
	for i, msg := range m.room.Messages {
		rendered := m.renderMessage(msg, i == m.sel)
		allLines = append(allLines, strings.Split(rendered, "\n")...)
	}

	total := len(allLines)
	maxScroll := total - viewportHeight
	if maxScroll < 0 {
		maxScroll = 0
	}
	scroll := m.scroll
	if scroll > maxScroll {
		scroll = maxScroll
	}

	end := total - scroll
	start := end - viewportHeight
	if start < 0 {
		start = 0
	}

	visible := allLines[start:end]

	var b strings.Builder
	padLines(viewportHeight-len(visible), &b)
	for _, line := range visible {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderMessage renders a single message, wrapping body text to fit the
// timeline width. May return multiple newline-separated lines.
func (m timelineModel) renderMessage(msg domain.Message, selected bool) string {
	timeStr := fmt.Sprintf("%8s", formatChatTime(msg.CreatedAt))
	timePart := metaStyle.Render(timeStr)
	sep := chatSepStyle.Render(" · ")

	self := msg.Author == m.self
	name := m.authorName(msg.Author)
	var namePart string
	switch {
	case self:
		namePart = chatSelfNameStyle.Render(name)
	default:
		namePart = chatNameStyle.Render(name)
	}

	marker := " "
	if selected {
		marker = accentStyle.Render(">")
	}

	renderBody := func(s string) string {
		switch msg.Status {
		case domain.StatusPending:
			return chatPendingStyle.Render(s)
		case domain.StatusFailed:
			return failStyle.Render(s)
		}
		highlighted := renderBodyWithMentions(s, string(m.self))
		if self {
			return chatSelfTextStyle.Render(highlighted)
		}
		return chatTextStyle.Render(highlighted)
	}

	// Prefix: marker + time + "  " + name + " · "
	prefixWidth := 1 + 8 + 2 + lipgloss.Width(namePart) + 3
	bodyWidth := m.width - prefixWidth
	if bodyWidth < 20 {
		bodyWidth = 20
	}
	wrapped := hardWrap(msg.Content, bodyWidth)
	lines := strings.Split(wrapped, "\n")

	result := marker + timePart + "  " + namePart + sep + renderBody(lines[0])
	if len(lines) > 1 {
		indent := strings.Repeat(" ", prefixWidth)
		for _, line := range lines[1:] {
			result += "\n" + indent + renderBody(line)
		}
	}

	switch {
	case msg.Status == domain.StatusPending:
		result += " " + chatPendingStyle.Render("…")
	case msg.Status == domain.StatusFailed:
		result += " " + failStyle.Render("✗ failed, r to retry, x to discard")
	case msg.Edited():
		result += " " + metaStyle.Render("(edited)")
	}
	return result
}

// authorName resolves a user id to the member's display name where known.
func (m timelineModel) authorName(id domain.UserID) string {
	if member, ok := m.room.Members[id]; ok && member.Name != "" {
		return member.Name
	}
	return string(id)
}

// helpKeys returns the context-sensitive help entries for the timeline.
func (m timelineModel) helpKeys() string {
	if m.composing() {
		return helpEntry("enter", "send") + "  " + helpEntry("esc", "nav")
	}
	return helpEntry("j/k", "scroll") + "  " + helpEntry("↑/↓", "select") + "  " +
		helpEntry("r", "retry") + "  " + helpEntry("x", "discard") + "  " +
		helpEntry("y", "copy") + "  " + helpEntry("o", "open link") + "  " +
		helpEntry("enter", "type")
}
