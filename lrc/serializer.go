package lrc

import (
	"io"
	"strconv"
	"strings"

	"lrc-editor-go/timecode"
)

// lineBreaks collapses CR and LF so a value cannot spill onto a new LRC line
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Serialize renders metadata and lines as LRC text. Untimed lines are skipped.
func Serialize(meta Metadata, lines []Line) string {
	var sb strings.Builder
	WriteTo(&sb, meta, lines)
	return sb.String()
}

// WriteTo writes the LRC form of meta and lines to w
func WriteTo(w io.Writer, meta Metadata, lines []Line) (int64, error) {
	var sb strings.Builder

	for _, code := range directiveOrder {
		if code == CodeOffset {
			if meta.Offset != 0 {
				sb.WriteString("[offset:" + strconv.Itoa(meta.Offset) + "]\n")
			}
			continue
		}
		if value := lineBreaks.Replace(meta.Get(code)); value != "" {
			sb.WriteString("[" + code + ":" + value + "]\n")
		}
	}
	for _, code := range meta.extraCodes() {
		if value := lineBreaks.Replace(meta.Extra[code]); value != "" {
			sb.WriteString("[" + code + ":" + value + "]\n")
		}
	}

	sb.WriteString("\n")

	for _, line := range lines {
		if line.Start == nil {
			continue
		}
		sb.WriteString(FormatLine(line))
		sb.WriteString("\n")
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// FormatLine renders a single timed line. The line must have a start time.
func FormatLine(line Line) string {
	text := lineBreaks.Replace(line.Text)
	if line.End != nil {
		return "[" + timecode.Format(*line.Start) + "-" + timecode.Format(*line.End) + "]" + text
	}
	return "[" + timecode.Format(*line.Start) + "]" + text
}
