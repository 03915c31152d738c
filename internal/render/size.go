package render

import (
	"net/url"
	"strconv"
	"strings"
)

// Pin sizes in pixels.
const (
	MinPinSize = 12
	MaxPinSize = 128

	pinMobileEmbed  = 36
	pinMobile       = 40
	pinDesktopEmbed = 52
	pinDesktop      = 46
)

// Hints describe the display a marker set is drawn for.
type Hints struct {
	Mobile   bool
	Embedded bool
	// IconSize is the raw iconsize query value; when it parses as an integer
	// it overrides everything else.
	IconSize string
}

// HintsFromQuery reads iconsize from q.
func HintsFromQuery(q url.Values, mobile, embedded bool) Hints {
	return Hints{Mobile: mobile, Embedded: embedded, IconSize: q.Get("iconsize")}
}

// PinSize returns the marker size for h.
func PinSize(h Hints) int {
	if n, ok := leadingInt(h.IconSize); ok {
		return min(max(n, MinPinSize), MaxPinSize)
	}
	switch {
	case h.Mobile && h.Embedded:
		return pinMobileEmbed
	case h.Mobile:
		return pinMobile
	case h.Embedded:
		return pinDesktopEmbed
	default:
		return pinDesktop
	}
}

// leadingInt parses an optional sign and the leading digits of s, so "48px"
// reads as 48.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
