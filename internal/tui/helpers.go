package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// mentionRe matches @word patterns in message text.
var mentionRe = regexp.MustCompile(`@(\w+)`)

// urlRe matches http/https URLs in message text.
var urlRe = regexp.MustCompile(`https?://[^\s<>\[\]()]+`)

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// padLines writes blank lines to fill dead space above sparse message lists.
func padLines(n int, b *strings.Builder) {
	for i := 0; i < n; i++ {
		b.WriteByte('\n')
	}
}

// formatChatTime formats a message timestamp as a short wall-clock time (H:MM).
// For messages older than today it shows "NdAgo" to save column space.
func formatChatTime(t time.Time) string {
	now := time.Now()
	y1, mo1, d1 := t.Date()
	y2, mo2, d2 := now.Date()
	if y1 == y2 && mo1 == mo2 && d1 == d2 {
		return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
	}
	days := int(now.Sub(t).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("%dd ago", days)
}

// firstURL returns the first http/https URL in a message body, or "".
func firstURL(body string) string {
	return urlRe.FindString(body)
}

// renderBodyWithMentions highlights @mentions and linkifies URLs in message
// body text. Self-mentions get extra bright styling. URLs become clickable
// OSC 8 hyperlinks.
func renderBodyWithMentions(body, myName string) string {
	body = urlRe.ReplaceAllStringFunc(body, hyperlinkOSC8)
	return mentionRe.ReplaceAllStringFunc(body, func(match string) string {
		name := match[1:] // strip leading @
		if strings.EqualFold(name, myName) {
			return mentionSelfStyle.Render(match)
		}
		return mentionStyle.Render(match)
	})
}

// hyperlinkOSC8 wraps a URL in OSC 8 escape sequences for clickable terminal
// hyperlinks.
func hyperlinkOSC8(url string) string {
	return "\033]8;;" + url + "\a" + url + "\033]8;;\a"
}

// hardWrap scans each line and hard-breaks any that exceed width at the rune
// boundary. This handles long tokens (like URLs) that lipgloss word-wrap
// can't break.
func hardWrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	var result []string
	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}
		runes := []rune(line)
		for len(runes) > 0 {
			end := len(runes)
			for end > 0 && lipgloss.Width(string(runes[:end])) > width {
				end--
			}
			if end == 0 {
				end = 1 // at least one rune per line to avoid infinite loop
			}
			result = append(result, string(runes[:end]))
			runes = runes[end:]
		}
	}
	return strings.Join(result, "\n")
}
