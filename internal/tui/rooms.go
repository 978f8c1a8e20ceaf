package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/concord-chat/concord/pkg/domain"
)

// sidebarWidth is the fixed column width of the room list.
const sidebarWidth = 24

// renderSidebar renders the room list, most recently active first. The
// active room is highlighted, the cursor marks the row j/k navigation is
// on, and unread counts show as a badge.
func renderSidebar(rooms []domain.Room, active domain.RoomID, cursor, height int) string {
	var b strings.Builder
	b.WriteString(" " + metaStyle.Render("rooms") + "\n")

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	for i, room := range rooms {
		if i >= rows {
			break
		}
		marker := " "
		if i == cursor {
			marker = accentStyle.Render(">")
		}

		name := truncStr(room.DisplayName(), sidebarWidth-8)
		var label string
		if room.ID == active {
			label = selectedStyle.Render(name)
		} else if room.Unread > 0 {
			label = unreadStyle.Render(name)
		} else {
			label = dimStyle.Render(name)
		}

		badge := ""
		if room.Unread > 0 {
			badge = " " + unreadStyle.Render(fmt.Sprintf("●%d", room.Unread))
		}

		pad := sidebarWidth - 2 - lipgloss.Width(label) - lipgloss.Width(badge)
		if pad < 0 {
			pad = 0
		}
		b.WriteString(marker + label + strings.Repeat(" ", pad) + badge + "\n")
	}
	if len(rooms) == 0 {
		b.WriteString(" " + dimStyle.Render("no rooms") + "\n")
	}

	return lipgloss.NewStyle().Width(sidebarWidth).Height(height).Render(b.String())
}
