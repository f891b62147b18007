// Package timeline holds the ordered lyric lines of an editing session and
// resolves which line is active at a playback position.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"lrc-editor-go/lrc"
)

var (
	ErrLineNotFound = errors.New("line not found")
	ErrIndexRange   = errors.New("line index out of range")
	ErrEmptyText    = errors.New("line text is empty")
	ErrInvalidText  = lrc.ErrInvalidText
	ErrTimeNotSet   = errors.New("time is not set")
	ErrInvalidTime  = errors.New("time must be a non-negative number")
	ErrUnknownKind  = errors.New("unknown time kind")
)

// NoLine is the active index when no line is playing
const NoLine = -1

// TimeKind selects the start or end time of a line
type TimeKind string

const (
	Start TimeKind = "startTime"
	End   TimeKind = "endTime"
)

// ParseTimeKind accepts "start"/"startTime" and "end"/"endTime"
func ParseTimeKind(s string) (TimeKind, error) {
	switch strings.ToLower(s) {
	case "start", "starttime":
		return Start, nil
	case "end", "endtime":
		return End, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// TimedLine is one lyric line. Order is the slice index, not a field.
type TimedLine struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	StartTime *float64 `json:"startTime"`
	EndTime   *float64 `json:"endTime"`
}

func (l TimedLine) clone() TimedLine {
	if l.StartTime != nil {
		v := *l.StartTime
		l.StartTime = &v
	}
	if l.EndTime != nil {
		v := *l.EndTime
		l.EndTime = &v
	}
	return l
}

func (l *TimedLine) timeRef(kind TimeKind) (**float64, error) {
	switch kind {
	case Start:
		return &l.StartTime, nil
	case End:
		return &l.EndTime, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// IDGenerator produces line ids; only uniqueness within a session matters
type IDGenerator func() string

// NewUUID is the default IDGenerator
func NewUUID() string {
	return uuid.NewString()
}

// Timeline is the ordered lyric sequence of a session. It is not safe for
// concurrent use; the owning session serializes access.
type Timeline struct {
	lines []TimedLine
	newID IDGenerator
}

// New returns an empty timeline. A nil generator uses NewUUID.
func New(gen IDGenerator) *Timeline {
	if gen == nil {
		gen = NewUUID
	}
	return &Timeline{lines: []TimedLine{}, newID: gen}
}

// FromDocument builds a timeline from parsed LRC lines
func FromDocument(lines []lrc.Line, gen IDGenerator) *Timeline {
	t := New(gen)
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		t.lines = append(t.lines, TimedLine{
			ID:        t.newID(),
			Text:      text,
			StartTime: copyTime(l.Start),
			EndTime:   copyTime(l.End),
		})
	}
	return t
}

// FromText builds an untimed timeline from raw lyrics, one line per non-blank row
func FromText(text string, gen IDGenerator) *Timeline {
	t := New(gen)
	for _, line := range lrc.ParsePlainText(text) {
		t.lines = append(t.lines, TimedLine{ID: t.newID(), Text: line})
	}
	return t
}

func copyTime(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Len returns the number of lines
func (t *Timeline) Len() int {
	return len(t.lines)
}

// Lines returns a deep copy of the sequence
func (t *Timeline) Lines() []TimedLine {
	out := make([]TimedLine, len(t.lines))
	for i, l := range t.lines {
		out[i] = l.clone()
	}
	return out
}

// Clone returns an independent copy sharing the id generator
func (t *Timeline) Clone() *Timeline {
	return &Timeline{lines: t.Lines(), newID: t.newID}
}

// Index returns the position of the line with the given id
func (t *Timeline) Index(id string) (int, error) {
	for i := range t.lines {
		if t.lines[i].ID == id {
			return i, nil
		}
	}
	return NoLine, fmt.Errorf("%w: %s", ErrLineNotFound, id)
}

// Get returns a copy of the line with the given id
func (t *Timeline) Get(id string) (TimedLine, error) {
	i, err := t.Index(id)
	if err != nil {
		return TimedLine{}, err
	}
	return t.lines[i].clone(), nil
}

// At returns a copy of the line at index
func (t *Timeline) At(index int) (TimedLine, error) {
	if index < 0 || index >= len(t.lines) {
		return TimedLine{}, fmt.Errorf("%w: %d", ErrIndexRange, index)
	}
	return t.lines[index].clone(), nil
}

// Add appends an untimed line
func (t *Timeline) Add(text string) (TimedLine, error) {
	return t.Insert(NoLine, text)
}

// checkText trims text and rejects what cannot be written as one LRC line
func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if !lrc.ValidText(text) {
		return "", ErrInvalidText
	}
	return text, nil
}

// Insert places an untimed line before index; -1 or Len() appends
func (t *Timeline) Insert(index int, text string) (TimedLine, error) {
	text, err := checkText(text)
	if err != nil {
		return TimedLine{}, err
	}
	if index == NoLine {
		index = len(t.lines)
	}
	if index < 0 || index > len(t.lines) {
		return TimedLine{}, fmt.Errorf("%w: %d", ErrIndexRange, index)
	}

	line := TimedLine{ID: t.newID(), Text: text}
	t.lines = append(t.lines, TimedLine{})
	copy(t.lines[index+1:], t.lines[index:])
	t.lines[index] = line
	return line.clone(), nil
}

// UpdateText replaces the text of a line
func (t *Timeline) UpdateText(id, text string) error {
	text, err := checkText(text)
	if err != nil {
		return err
	}
	i, err := t.Index(id)
	if err != nil {
		return err
	}
	t.lines[i].Text = text
	return nil
}

// Delete removes a line
func (t *Timeline) Delete(id string) error {
	i, err := t.Index(id)
	if err != nil {
		return err
	}
	t.lines = append(t.lines[:i], t.lines[i+1:]...)
	return nil
}

// SetTime sets the start or end of a line. End before start is accepted as is;
// such a line never resolves as active.
func (t *Timeline) SetTime(id string, kind TimeKind, seconds float64) error {
	if !validTime(seconds) {
		return fmt.Errorf("%w: %v", ErrInvalidTime, seconds)
	}
	i, err := t.Index(id)
	if err != nil {
		return err
	}
	ref, err := t.lines[i].timeRef(kind)
	if err != nil {
		return err
	}
	*ref = &seconds
	return nil
}

// ClearTime unsets the start or end of a line
func (t *Timeline) ClearTime(id string, kind TimeKind) error {
	i, err := t.Index(id)
	if err != nil {
		return err
	}
	ref, err := t.lines[i].timeRef(kind)
	if err != nil {
		return err
	}
	*ref = nil
	return nil
}

// AdjustTime shifts a set time by delta seconds, clamping at zero
func (t *Timeline) AdjustTime(id string, kind TimeKind, delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTime, delta)
	}
	i, err := t.Index(id)
	if err != nil {
		return err
	}
	ref, err := t.lines[i].timeRef(kind)
	if err != nil {
		return err
	}
	if *ref == nil {
		return fmt.Errorf("%w: %s of line %s", ErrTimeNotSet, kind, id)
	}
	v := **ref + delta
	if v < 0 {
		v = 0
	}
	*ref = &v
	return nil
}

func validTime(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= maxSeconds
}

// maxSeconds bounds accepted times well beyond any real track
const maxSeconds = 1e7

// ToLRC converts the sequence for serialization
func (t *Timeline) ToLRC() []lrc.Line {
	out := make([]lrc.Line, len(t.lines))
	for i, l := range t.lines {
		out[i] = lrc.Line{Text: l.Text, Start: copyTime(l.StartTime), End: copyTime(l.EndTime)}
	}
	return out
}
