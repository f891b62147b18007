package session

import (
	"context"
	"fmt"
	"math"
	"sync"

	"lrc-editor-go/ingest"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/timeline"

	log "github.com/sirupsen/logrus"
)

// Source selects the audio the player is bound to
type Source string

const (
	SourceMain         Source = "main"
	SourceMixed        Source = "mixed"
	SourceInstrumental Source = "instrumental"
	SourceVocal        Source = "vocal"
)

// ParseSource validates a source selector
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case SourceMain, SourceMixed, SourceInstrumental, SourceVocal:
		return src, nil
	}
	return "", newError("parse source", KindInvalid, fmt.Errorf("%w: %q", ErrUnknownSource, s))
}

// Playback is the player state as last reported by the playback driver
type Playback struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	IsPlaying   bool    `json:"isPlaying"`
	Source      Source  `json:"source"`
}

// SourceLoad is a pending switch of the player to another source. It
// carries the position and play state captured when the switch started.
type SourceLoad struct {
	ID       uint64  `json:"id"`
	Source   Source  `json:"source"`
	Position float64 `json:"position"`
	Resume   bool    `json:"resume"`

	generation uint64
	ready      chan struct{}
	once       sync.Once
}

// Ready is closed once the load completes or is superseded
func (l *SourceLoad) Ready() <-chan struct{} {
	return l.ready
}

func (l *SourceLoad) signal() {
	l.once.Do(func() { close(l.ready) })
}

func validPosition(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0) && t >= 0
}

// SetPosition records a playback tick and returns the active line index.
// Ticks that arrive while a source switch is loading belong to the old
// source and are ignored.
func (s *Session) SetPosition(t float64) (int, error) {
	if !validPosition(t) {
		return timeline.NoLine, newError("set position", KindInvalid, fmt.Errorf("%w: %v", ErrInvalidPosition, t))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.load != nil {
		return s.active, nil
	}
	s.playback.CurrentTime = t
	s.recomputeActiveLocked()
	return s.active, nil
}

// Seek moves the playhead. During a pending source switch the carried
// position is updated instead.
func (s *Session) Seek(t float64) (int, error) {
	if !validPosition(t) {
		return timeline.NoLine, newError("seek", KindInvalid, fmt.Errorf("%w: %v", ErrInvalidPosition, t))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.load != nil {
		s.load.Position = t
	}
	s.playback.CurrentTime = t
	s.recomputeActiveLocked()
	return s.active, nil
}

// SetDuration records the loaded source's length
func (s *Session) SetDuration(d float64) error {
	if !validPosition(d) {
		return newError("set duration", KindInvalid, fmt.Errorf("%w: %v", ErrInvalidPosition, d))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback.Duration = d
	return nil
}

// SetPlaying records the play state
func (s *Session) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.load != nil {
		s.load.Resume = playing
		return
	}
	s.playback.IsPlaying = playing
}

// ActiveIndex returns the line active at the current position
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PlayFromLine seeks to a line's start and starts playback
func (s *Session) PlayFromLine(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := s.lines.Get(id)
	if err != nil {
		return timeline.NoLine, lineError("play from line", err)
	}
	return s.playLineLocked("play from line", line)
}

// JumpToLine seeks to the start of the line at index and starts playback
func (s *Session) JumpToLine(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := s.lines.At(index)
	if err != nil {
		return timeline.NoLine, lineError("jump to line", err)
	}
	return s.playLineLocked("jump to line", line)
}

func (s *Session) playLineLocked(op string, line timeline.TimedLine) (int, error) {
	if line.StartTime == nil {
		return timeline.NoLine, newError(op, KindConflict, fmt.Errorf("%w: start of line %s", timeline.ErrTimeNotSet, line.ID))
	}
	if !s.audio.Any() {
		return timeline.NoLine, newError(op, KindConflict, ErrNoAudio)
	}

	if s.load != nil {
		s.load.Position = *line.StartTime
		s.load.Resume = true
	} else {
		s.playback.IsPlaying = true
	}
	s.playback.CurrentTime = *line.StartTime
	s.recomputeActiveLocked()
	return s.active, nil
}

// SwitchSource starts moving the player to another source in dual-stem
// mode. The player is paused; position and play state are carried on the
// returned load and applied by CompleteLoad.
func (s *Session) SwitchSource(src Source) (*SourceLoad, error) {
	const op = "switch source"

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.audio.Any() {
		return nil, newError(op, KindConflict, ErrNoAudio)
	}
	if err := s.checkSourceLocked(src); err != nil {
		return nil, newError(op, KindConflict, err)
	}

	position, resume := s.playback.CurrentTime, s.playback.IsPlaying
	if s.load != nil {
		// A switch during a switch keeps the state captured by the first one
		position, resume = s.load.Position, s.load.Resume
		s.load.signal()
	}

	s.loadSeq++
	load := &SourceLoad{
		ID:         s.loadSeq,
		Source:     src,
		Position:   position,
		Resume:     resume,
		generation: s.generation,
		ready:      make(chan struct{}),
	}
	s.load = load
	s.playback.Source = src
	s.playback.IsPlaying = false

	log.Debugf("%s %s Switching to %s at %.2fs (resume=%v)",
		logcolors.LogSession, logcolors.Session(s.id), src, position, resume)
	return load, nil
}

// CompleteLoad applies a finished source load. A load that was superseded
// by another switch, a reset or re-ingestion returns ErrStale.
func (s *Session) CompleteLoad(id uint64) (*SourceLoad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	load := s.load
	if load == nil || load.ID != id || load.generation != s.generation {
		return nil, newError("complete load", KindStale, ErrStale)
	}

	s.playback.CurrentTime = load.Position
	s.playback.IsPlaying = load.Resume
	s.load = nil
	s.recomputeActiveLocked()
	load.signal()
	return load, nil
}

// PendingLoad returns the in-flight source load, if any
func (s *Session) PendingLoad() *SourceLoad {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load
}

// Pause stops playback. When a source load is pending it waits for that
// load to become ready first, so a resume carried by the load cannot undo
// the pause.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	load := s.load
	s.mu.Unlock()

	if load != nil {
		select {
		case <-load.Ready():
		case <-ctx.Done():
			return newError("pause", KindConflict, ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.load != nil {
		// A new switch started while waiting; it inherits the pause
		s.load.Resume = false
	}
	s.playback.IsPlaying = false
	return nil
}

func (s *Session) cancelLoadLocked() {
	if s.load != nil {
		s.load.signal()
		s.load = nil
	}
}

func (s *Session) checkSourceLocked(src Source) error {
	if !s.audio.DualStem() {
		if src != SourceMain {
			return fmt.Errorf("%w: %s", ErrNotDualStem, src)
		}
		return nil
	}
	switch src {
	case SourceInstrumental, SourceVocal:
		return nil
	case SourceMixed:
		if s.audio.MixStatus != MixReady {
			return fmt.Errorf("%w: mixed audio is %s", ErrSourceUnavailable, mixStatusText(s.audio.MixStatus))
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSourceUnavailable, src)
}

func mixStatusText(st MixStatus) string {
	if st == MixNone {
		return "not available"
	}
	return string(st)
}

func (s *Session) defaultSourceLocked() Source {
	if s.audio.DualStem() {
		return SourceMixed
	}
	return SourceMain
}

// Audio returns the bytes behind a source
func (s *Session) Audio(src Source) (*ingest.File, error) {
	const op = "audio"

	s.mu.Lock()
	defer s.mu.Unlock()

	var f *ingest.File
	switch src {
	case SourceMain:
		f = s.audio.Main
	case SourceInstrumental:
		f = s.audio.Instrumental
	case SourceVocal:
		f = s.audio.Vocal
	case SourceMixed:
		if s.audio.MixStatus == MixReady {
			f = &ingest.File{Name: "mixed.wav", ContentType: "audio/wav", Data: s.audio.Mixed}
		}
	default:
		return nil, newError(op, KindInvalid, fmt.Errorf("%w: %q", ErrUnknownSource, src))
	}
	if f == nil {
		return nil, newError(op, KindNotFound, fmt.Errorf("%w: %s", ErrSourceUnavailable, src))
	}
	return f, nil
}
