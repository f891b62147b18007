// Package lrc reads and writes LRC synchronized lyrics.
package lrc

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"lrc-editor-go/timecode"
)

var (
	// Metadata directive: [code:value] with a lowercase code
	metadataRegex = regexp.MustCompile(`^\[([a-z]+):(.+)\]$`)

	// Ranged line: [mm:ss.cc-mm:ss.cc]text
	rangeLineRegex = regexp.MustCompile(`^\[(\d{2,}):(\d{2})\.(\d{2})-(\d{2,}):(\d{2})\.(\d{2})\](.*)$`)

	// Legacy line: [mm:ss.cc]text
	legacyLineRegex = regexp.MustCompile(`^\[(\d{2,}):(\d{2})\.(\d{2})\](.*)$`)

	// Anything that looks like a timestamp, used to keep odd directives out of metadata
	timePatternRegex = regexp.MustCompile(`\d{2,}:\d{2}\.\d{2}`)
)

const (
	utf8BOM = "\ufeff"

	reasonNoText = "timed line has no text"
)

// Parse reads LRC text leniently: unrecognized lines are skipped silently.
func Parse(content string) (*Document, error) {
	doc, _ := parse(content)
	return doc, nil
}

// ParseBytes validates that data is readable text before parsing it.
// Invalid UTF-8 or binary content yields ErrMalformedLRC.
func ParseBytes(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrMalformedLRC)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: content contains binary data", ErrMalformedLRC)
	}
	return Parse(string(data))
}

// ParseStrict parses like Parse and also reports every non-blank line that was skipped.
func ParseStrict(content string) (*Document, Diagnostics, error) {
	doc, diags := parse(content)
	return doc, diags, nil
}

// ParsePlainText splits raw lyrics into trimmed, non-empty lines
func ParsePlainText(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

func parse(content string) (*Document, Diagnostics) {
	content = strings.TrimPrefix(content, utf8BOM)

	doc := &Document{Lines: []Line{}}
	var diags Diagnostics
	var timed []Line

	for i, raw := range strings.Split(content, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if m := metadataRegex.FindStringSubmatch(raw); m != nil && !timePatternRegex.MatchString(m[1]+":"+m[2]) {
			doc.Metadata.Set(m[1], strings.TrimSpace(m[2]))
			continue
		}

		line, reason := parseTimedLine(raw)
		if reason != "" {
			diags = append(diags, Diagnostic{LineNumber: i + 1, Raw: raw, Reason: reason})
		}
		// A timestamp without text is an end marker: it still ends the
		// previous line, then it is dropped
		if line.Start != nil {
			timed = append(timed, line)
		}
	}

	fillEndTimes(timed)
	for _, line := range timed {
		if line.Text != "" {
			doc.Lines = append(doc.Lines, line)
		}
	}
	return doc, diags
}

// parseTimedLine returns the line or a non-empty reason it was skipped.
// A timed line without text comes back with its times and reasonNoText.
func parseTimedLine(raw string) (Line, string) {
	if m := rangeLineRegex.FindStringSubmatch(raw); m != nil {
		start, err := timecode.FromParts(m[1], m[2], m[3])
		if err != nil {
			return Line{}, err.Error()
		}
		end, err := timecode.FromParts(m[4], m[5], m[6])
		if err != nil {
			return Line{}, err.Error()
		}
		line := Line{Text: strings.TrimSpace(m[7]), Start: &start, End: &end}
		if line.Text == "" {
			return line, reasonNoText
		}
		return line, ""
	}

	if m := legacyLineRegex.FindStringSubmatch(raw); m != nil {
		start, err := timecode.FromParts(m[1], m[2], m[3])
		if err != nil {
			return Line{}, err.Error()
		}
		line := Line{Text: strings.TrimSpace(m[4]), Start: &start}
		if line.Text == "" {
			return line, reasonNoText
		}
		return line, ""
	}

	return Line{}, "not a metadata directive or timed line"
}

// fillEndTimes gives every open line but the last the start of its successor.
// Each line reads only its successor's own start, so fills never cascade.
func fillEndTimes(lines []Line) {
	for i := 0; i < len(lines)-1; i++ {
		if lines[i].End != nil || lines[i+1].Start == nil {
			continue
		}
		end := *lines[i+1].Start
		lines[i].End = &end
	}
}
