package session

import (
	"errors"
	"fmt"

	"lrc-editor-go/lrc"
	"lrc-editor-go/timeline"
)

func lineError(op string, err error) error {
	switch {
	case errors.Is(err, timeline.ErrLineNotFound):
		return newError(op, KindNotFound, err)
	case errors.Is(err, timeline.ErrTimeNotSet):
		return newError(op, KindConflict, err)
	default:
		return newError(op, KindInvalid, err)
	}
}

// AddLine inserts an untimed line before index; -1 uses the pending
// insertion index, appending when none is set
func (s *Session) AddLine(text string, index int) (timeline.TimedLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 {
		index = s.addLyricIndex
	}
	line, err := s.lines.Insert(index, text)
	if err != nil {
		return timeline.TimedLine{}, lineError("add line", err)
	}
	s.addLyricIndex = timeline.NoLine
	s.recomputeActiveLocked()
	s.touch()
	if s.state == StateEmpty {
		s.state = StateEditing
	}
	return line, nil
}

// UpdateLine replaces a line's text
func (s *Session) UpdateLine(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lines.UpdateText(id, text); err != nil {
		return lineError("update line", err)
	}
	s.touch()
	return nil
}

// DeleteLine removes a line
func (s *Session) DeleteLine(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lines.Delete(id); err != nil {
		return lineError("delete line", err)
	}
	s.recomputeActiveLocked()
	s.touch()
	return nil
}

// SetLineTime sets a start or end time. A nil value stamps the current
// playback position.
func (s *Session) SetLineTime(id string, kind timeline.TimeKind, value *float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.playback.CurrentTime
	if value != nil {
		t = *value
	}
	if err := s.lines.SetTime(id, kind, t); err != nil {
		return 0, lineError("set time", err)
	}
	s.recomputeActiveLocked()
	s.touch()
	return t, nil
}

// ClearLineTime unsets a start or end time
func (s *Session) ClearLineTime(id string, kind timeline.TimeKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lines.ClearTime(id, kind); err != nil {
		return lineError("clear time", err)
	}
	s.recomputeActiveLocked()
	s.touch()
	return nil
}

// AdjustLineTime nudges a set time by delta seconds, clamping at zero
func (s *Session) AdjustLineTime(id string, kind timeline.TimeKind, delta float64) (timeline.TimedLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lines.AdjustTime(id, kind, delta); err != nil {
		return timeline.TimedLine{}, lineError("adjust time", err)
	}
	s.recomputeActiveLocked()
	s.touch()
	line, _ := s.lines.Get(id)
	return line, nil
}

// Lines returns a copy of the lyric lines
func (s *Session) Lines() []timeline.TimedLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines.Lines()
}

// Metadata returns the song metadata
func (s *Session) Metadata() lrc.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata.Clone()
}

// SetMetadata replaces all metadata
func (s *Session) SetMetadata(meta lrc.Metadata) error {
	if err := meta.Validate(); err != nil {
		return newError("set metadata", KindInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata = meta.Clone()
	s.touch()
	return nil
}

// UpdateMetadata sets one directive by its LRC code (ti, ar, offset, ...).
// Unknown codes are kept as extra directives.
func (s *Session) UpdateMetadata(code, value string) error {
	if !validCode(code) {
		return newError("update metadata", KindInvalid, errors.New("invalid directive code "+code))
	}
	if !lrc.ValidText(value) {
		return newError("update metadata", KindInvalid, fmt.Errorf("%w: [%s]", lrc.ErrInvalidText, code))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metadata = s.metadata.Clone()
	s.metadata.Set(code, value)
	s.touch()
	return nil
}

// validCode matches the directive codes the parser can read back
func validCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
