package lrc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrMalformedLRC is returned when the input cannot be read as LRC text at all.
	// Unrecognized lines inside otherwise readable text are skipped, not reported.
	ErrMalformedLRC = errors.New("malformed LRC content")

	// ErrInvalidText is returned for line text or directive values that
	// would not survive on a single LRC line
	ErrInvalidText = errors.New("text contains line breaks or control characters")
)

// ValidText reports whether s can be written on one LRC line. Tabs are allowed.
func ValidText(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r != '\t' && unicode.IsControl(r)
	}) < 0
}

// Metadata directive codes, in the order they are written
const (
	CodeTitle     = "ti"
	CodeArtist    = "ar"
	CodeAlbum     = "al"
	CodeAuthor    = "au"
	CodeLength    = "length"
	CodeCreatedBy = "by"
	CodeOffset    = "offset"
	CodeRevision  = "re"
	CodeVersion   = "ve"
)

// directiveOrder is the fixed output order of known directives
var directiveOrder = []string{
	CodeTitle, CodeArtist, CodeAlbum, CodeAuthor, CodeLength,
	CodeCreatedBy, CodeOffset, CodeRevision, CodeVersion,
}

// Editor defaults applied to new sessions and to imports missing these directives
const (
	DefaultCreatedBy = "LRC Editor v1.0"
	DefaultRevision  = "LRC Editor"
	DefaultVersion   = "1.0"
)

// Metadata holds song-level LRC directives
type Metadata struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album"`
	Author    string `json:"author"`
	Length    string `json:"length"`
	CreatedBy string `json:"by"`
	Offset    int    `json:"offset"`
	Revision  string `json:"re"`
	Version   string `json:"ve"`

	// Extra keeps directives with unknown codes so they survive a round trip
	Extra map[string]string `json:"extra,omitempty"`
}

// DefaultMetadata returns the metadata of a fresh editing session
func DefaultMetadata() Metadata {
	return Metadata{
		CreatedBy: DefaultCreatedBy,
		Revision:  DefaultRevision,
		Version:   DefaultVersion,
	}
}

// IsKnownCode reports whether code is one of the typed metadata directives
func IsKnownCode(code string) bool {
	for _, c := range directiveOrder {
		if c == code {
			return true
		}
	}
	return false
}

// Get returns the textual value of a directive. Offset 0 reads as empty.
func (m Metadata) Get(code string) string {
	switch code {
	case CodeTitle:
		return m.Title
	case CodeArtist:
		return m.Artist
	case CodeAlbum:
		return m.Album
	case CodeAuthor:
		return m.Author
	case CodeLength:
		return m.Length
	case CodeCreatedBy:
		return m.CreatedBy
	case CodeOffset:
		if m.Offset == 0 {
			return ""
		}
		return strconv.Itoa(m.Offset)
	case CodeRevision:
		return m.Revision
	case CodeVersion:
		return m.Version
	default:
		return m.Extra[code]
	}
}

// Set assigns a directive by code. An offset that is not an integer becomes 0.
func (m *Metadata) Set(code, value string) {
	switch code {
	case CodeTitle:
		m.Title = value
	case CodeArtist:
		m.Artist = value
	case CodeAlbum:
		m.Album = value
	case CodeAuthor:
		m.Author = value
	case CodeLength:
		m.Length = value
	case CodeCreatedBy:
		m.CreatedBy = value
	case CodeOffset:
		m.Offset = parseOffset(value)
	case CodeRevision:
		m.Revision = value
	case CodeVersion:
		m.Version = value
	default:
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[code] = value
	}
}

// Validate rejects directive values that ValidText refuses
func (m Metadata) Validate() error {
	for _, code := range directiveOrder {
		if code == CodeOffset {
			continue
		}
		if !ValidText(m.Get(code)) {
			return fmt.Errorf("%w: [%s]", ErrInvalidText, code)
		}
	}
	for code, value := range m.Extra {
		if !ValidText(value) {
			return fmt.Errorf("%w: [%s]", ErrInvalidText, code)
		}
	}
	return nil
}

// Clone returns a copy that shares no map with m
func (m Metadata) Clone() Metadata {
	if m.Extra != nil {
		extra := make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		m.Extra = extra
	}
	return m
}

// WithDefaults fills empty by/re/ve directives from defaults
func (m Metadata) WithDefaults(defaults Metadata) Metadata {
	if m.CreatedBy == "" {
		m.CreatedBy = defaults.CreatedBy
	}
	if m.Revision == "" {
		m.Revision = defaults.Revision
	}
	if m.Version == "" {
		m.Version = defaults.Version
	}
	return m
}

// extraCodes returns the unknown directive codes in sorted order
func (m Metadata) extraCodes() []string {
	codes := make([]string, 0, len(m.Extra))
	for code := range m.Extra {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// parseOffset follows parseInt semantics: leading sign and digits, anything else is 0
func parseOffset(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

// Line is one timed lyric line as read from or written to LRC text.
// A nil Start means the line is untimed, a nil End means it is open-ended.
type Line struct {
	Text  string   `json:"text"`
	Start *float64 `json:"startTime"`
	End   *float64 `json:"endTime"`
}

// Document is the parsed form of an LRC file
type Document struct {
	Metadata Metadata `json:"metadata"`
	Lines    []Line   `json:"lines"`
}

// Diagnostic describes a non-blank line the parser skipped
type Diagnostic struct {
	LineNumber int    `json:"line"`
	Raw        string `json:"raw"`
	Reason     string `json:"reason"`
}

// Diagnostics is the list of skipped lines collected by ParseStrict
type Diagnostics []Diagnostic

// Err returns nil when nothing was skipped, otherwise an error describing the
// first skipped line and the total count.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	first := d[0]
	if len(d) == 1 {
		return &StrictError{Diagnostics: d, msg: "line " + strconv.Itoa(first.LineNumber) + ": " + first.Reason}
	}
	return &StrictError{Diagnostics: d, msg: "line " + strconv.Itoa(first.LineNumber) + ": " + first.Reason +
		" (and " + strconv.Itoa(len(d)-1) + " more)"}
}

// StrictError wraps ErrMalformedLRC with the diagnostics of a strict parse
type StrictError struct {
	Diagnostics Diagnostics
	msg         string
}

func (e *StrictError) Error() string {
	return ErrMalformedLRC.Error() + ": " + e.msg
}

func (e *StrictError) Unwrap() error {
	return ErrMalformedLRC
}

// Float returns a pointer to v, for building optional times
func Float(v float64) *float64 {
	return &v
}
