// Package timecode converts between seconds and the MM:SS.CC notation used by
// LRC files and the editor's time displays.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Placeholder is shown for times that are not set. It is never written to an LRC file.
const Placeholder = "--:--"

// centisecondGuard absorbs binary fraction error (0.29*100 == 28.999...) before truncation.
const centisecondGuard = 1e-9

var timeRegex = regexp.MustCompile(`^(\d+):(\d{2})(?:\.(\d{1,2}))?$`)

// centiseconds returns the truncated centisecond count for a valid time.
func centiseconds(seconds float64) int64 {
	return int64(math.Floor(seconds*100 + centisecondGuard))
}

func valid(seconds float64) bool {
	return !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds >= 0
}

// Format renders seconds as MM:SS.CC. Minutes are unbounded, centiseconds are
// truncated toward zero. Invalid input (NaN, Inf, negative) yields Placeholder.
func Format(seconds float64) string {
	if !valid(seconds) {
		return Placeholder
	}
	cs := centiseconds(seconds)
	return fmt.Sprintf("%02d:%02d.%02d", cs/6000, (cs/100)%60, cs%100)
}

// FormatPtr formats an optional time, nil yields Placeholder.
func FormatPtr(seconds *float64) string {
	if seconds == nil {
		return Placeholder
	}
	return Format(*seconds)
}

// FormatRange renders "start-end", or "start-" for an open end.
// ok is false when start is not set.
func FormatRange(start, end *float64) (string, bool) {
	if start == nil {
		return "", false
	}
	if end == nil {
		return Format(*start) + "-", true
	}
	return Format(*start) + "-" + Format(*end), true
}

// Truncate returns the value Format would display, in seconds.
func Truncate(seconds float64) float64 {
	if !valid(seconds) {
		return seconds
	}
	return float64(centiseconds(seconds)) / 100
}

// Parse is the inverse of Format. It reports false for Placeholder, the empty
// string and anything malformed. A single fraction digit is read as tenths.
func Parse(s string) (float64, bool) {
	if s == "" || s == Placeholder {
		return 0, false
	}

	m := timeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	minutes, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	secs, _ := strconv.ParseInt(m[2], 10, 64)
	if secs >= 60 {
		return 0, false
	}

	var cs int64
	switch len(m[3]) {
	case 1:
		cs, _ = strconv.ParseInt(m[3], 10, 64)
		cs *= 10
	case 2:
		cs, _ = strconv.ParseInt(m[3], 10, 64)
	}

	return float64(minutes*6000+secs*100+cs) / 100, true
}

// FromParts builds seconds from the captured fields of an LRC timestamp.
func FromParts(minutes, seconds, centis string) (float64, error) {
	m, err := strconv.ParseInt(minutes, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid minutes %q: %w", minutes, err)
	}
	s, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q: %w", seconds, err)
	}
	c, err := strconv.ParseInt(centis, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid centiseconds %q: %w", centis, err)
	}
	return float64(m*6000+s*100+c) / 100, nil
}
