package session

import (
	"fmt"

	"lrc-editor-go/export"
	"lrc-editor-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// MixdownTicket is the input of a mixdown started at a given audio generation.
// Seq tells apart jobs started for the same generation.
type MixdownTicket struct {
	Generation   uint64
	Seq          uint64
	Instrumental []byte
	Vocal        []byte
}

// BeginMixdown hands out the stems to mix. The result must be committed
// with the returned ticket. Only one mixdown runs at a time, and a finished
// mix is never replaced.
func (s *Session) BeginMixdown() (*MixdownTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginMixdownLocked("begin mixdown")
}

// RetryMixdown starts a new mixdown after the previous one failed
func (s *Session) RetryMixdown() (*MixdownTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audio.DualStem() && s.audio.MixStatus != MixFailed {
		return nil, newError("retry mixdown", KindConflict, fmt.Errorf("%w (mix is %s)", ErrMixdownNotFailed, mixStatusText(s.audio.MixStatus)))
	}
	return s.beginMixdownLocked("retry mixdown")
}

func (s *Session) beginMixdownLocked(op string) (*MixdownTicket, error) {
	if !s.audio.DualStem() {
		return nil, newError(op, KindConflict, ErrNotDualStem)
	}
	if s.mixRunning {
		return nil, newError(op, KindConflict, ErrMixdownRunning)
	}
	if s.audio.MixStatus == MixReady {
		return nil, newError(op, KindConflict, ErrMixdownReady)
	}

	s.mixSeq++
	s.mixRunning = true
	s.audio.MixStatus = MixPending
	return &MixdownTicket{
		Generation:   s.generation,
		Seq:          s.mixSeq,
		Instrumental: s.audio.Instrumental.Data,
		Vocal:        s.audio.Vocal.Data,
	}, nil
}

// currentMixLocked reports whether t is the ticket of the running mixdown
func (s *Session) currentMixLocked(t *MixdownTicket) bool {
	return t.Generation == s.generation && t.Seq == s.mixSeq && s.mixRunning && s.audio.DualStem()
}

// CommitMixdown stores a finished mix unless the audio changed or another
// mixdown was started since the ticket was issued
func (s *Session) CommitMixdown(t *MixdownTicket, wav []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentMixLocked(t) {
		log.Infof("%s %s Discarding stale mixdown (generation %d/%d, now %d/%d)",
			logcolors.LogMixdown, logcolors.Session(s.id), t.Generation, t.Seq, s.generation, s.mixSeq)
		return newError("commit mixdown", KindStale, ErrStale)
	}
	s.mixRunning = false
	s.audio.Mixed = wav
	s.audio.MixStatus = MixReady
	return nil
}

// FailMixdown records a failed mix and moves playback off the mixed source.
// A superseded ticket leaves the session untouched.
func (s *Session) FailMixdown(t *MixdownTicket, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.currentMixLocked(t) {
		return newError("fail mixdown", KindStale, ErrStale)
	}
	s.mixRunning = false
	s.audio.Mixed = nil
	s.audio.MixStatus = MixFailed
	if s.playback.Source == SourceMixed {
		s.playback.Source = SourceInstrumental
	}
	log.Warnf("%s %s Mixdown failed, falling back to %s: %v",
		logcolors.LogMixdown, logcolors.Session(s.id), s.playback.Source, cause)
	return nil
}

// ExportTicket is a detached copy of the session content at one revision
type ExportTicket struct {
	Generation uint64
	Revision   uint64
	Project    *export.Project
}

// BeginExport snapshots everything an export needs
func (s *Session) BeginExport() (*ExportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lines.Len() == 0 {
		return nil, newError("begin export", KindConflict, export.ErrNothingToExport)
	}

	p := &export.Project{
		Metadata: s.metadata.Clone(),
		Lines:    s.lines.Lines(),
		Prefix:   s.prefix,
		Created:  s.opts.Now(),
	}
	if f := s.audio.Main; f != nil {
		p.Main = &export.Audio{Name: f.Name, Data: f.Data}
	}
	if f := s.audio.Instrumental; f != nil {
		p.Instrumental = &export.Audio{Name: f.Name, Data: f.Data}
	}
	if f := s.audio.Vocal; f != nil {
		p.Vocal = &export.Audio{Name: f.Name, Data: f.Data}
	}
	return &ExportTicket{Generation: s.generation, Revision: s.revision, Project: p}, nil
}

// CommitExport marks the session exported unless it was edited, reset or
// re-ingested while the export was being built. Both cases are KindStale;
// an edit alone also matches ErrEditedDuringExport.
func (s *Session) CommitExport(t *ExportTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Generation != s.generation {
		return newError("commit export", KindStale, fmt.Errorf("%w: session was reset or re-ingested", ErrStale))
	}
	if t.Revision != s.revision {
		return newError("commit export", KindStale, fmt.Errorf("%w: %w", ErrStale, ErrEditedDuringExport))
	}
	s.state = StateExported
	log.Infof("%s %s Exported %d lines", logcolors.LogExport, logcolors.Session(s.id), len(t.Project.Lines))
	return nil
}
