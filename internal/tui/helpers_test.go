package tui

import (
	"strings"
	"testing"
	"time"
)

func TestTruncStr(t *testing.T) {
	if got := truncStr("hello", 10); got != "hello" {
		t.Errorf("truncStr(hello, 10) = %q, want unchanged", got)
	}
	got := truncStr("hello world", 8)
	if len([]rune(got)) != 8 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncStr(hello world, 8) = %q, want 8 runes ending in ellipsis", got)
	}
}

func TestTruncateToHeight(t *testing.T) {
	s := "a\nb\nc\nd\n"
	if got := truncateToHeight(s, 2); got != "a\nb\n" {
		t.Errorf("truncateToHeight = %q, want %q", got, "a\nb\n")
	}
	if got := truncateToHeight(s, 0); got != s {
		t.Errorf("truncateToHeight with 0 = %q, want original", got)
	}
}

func TestHardWrapBreaksLongTokens(t *testing.T) {
	got := hardWrap("aaaaaaaaaa", 4)
	want := "aaaa\naaaa\naa"
	if got != want {
		t.Errorf("hardWrap = %q, want %q", got, want)
	}
}

func TestHardWrapLeavesShortLines(t *testing.T) {
	if got := hardWrap("ok", 10); got != "ok" {
		t.Errorf("hardWrap(ok) = %q, want unchanged", got)
	}
}

func TestFirstURL(t *testing.T) {
	if got := firstURL("see https://example.org/x and more"); got != "https://example.org/x" {
		t.Errorf("firstURL = %q", got)
	}
	if got := firstURL("no links here"); got != "" {
		t.Errorf("firstURL = %q, want empty", got)
	}
}

func TestFormatChatTimeToday(t *testing.T) {
	at := time.Now().Add(-time.Minute)
	got := formatChatTime(at)
	if !strings.Contains(got, ":") {
		t.Errorf("formatChatTime(today) = %q, want wall-clock form", got)
	}
}

func TestFormatChatTimeOld(t *testing.T) {
	got := formatChatTime(time.Now().Add(-48 * time.Hour))
	if got != "2d ago" {
		t.Errorf("formatChatTime = %q, want 2d ago", got)
	}
}
