package render

import (
	"regexp"
	"strings"
	"unicode"
)

const barWidth = 10

// ansiAny matches any CSI escape sequence, plus bare OSC sequences that
// terminals interpret as title or hyperlink changes.
var (
	ansiAny = regexp.MustCompile(`\x1b\[[\x20-\x3f]*[\x40-\x7e]`)
	ansiOSC = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)
)

// Clean makes server-supplied text safe to draw in a terminal: escape
// sequences are dropped, other control characters become spaces and runs of
// whitespace collapse to one space.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = ansiOSC.ReplaceAllString(s, "")
	s = ansiAny.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\x1b' {
			return -1
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// VelocityBar draws v (0..100) as a fixed-width bar.
func VelocityBar(v, width int) string {
	if width <= 0 {
		return ""
	}
	filled := clampPercent(v) * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
