// Package session holds the editing state for one song: its audio sources,
// the lyrics timeline, metadata and playback position.
package session

import (
	"strings"
	"sync"
	"time"

	"lrc-editor-go/ingest"
	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/timeline"

	log "github.com/sirupsen/logrus"
)

// State is the lifecycle stage of a session
type State string

const (
	StateEmpty       State = "empty"
	StateAudioLoaded State = "audio_loaded"
	StateEditing     State = "editing"
	StateExported    State = "exported"
)

// MixStatus tracks the synthetic mixed source in dual-stem mode
type MixStatus string

const (
	MixNone    MixStatus = ""
	MixPending MixStatus = "pending"
	MixReady   MixStatus = "ready"
	MixFailed  MixStatus = "failed"
)

// AudioFiles are the loaded sources. Either Main is set, or both
// Instrumental and Vocal are.
type AudioFiles struct {
	Main         *ingest.File
	Instrumental *ingest.File
	Vocal        *ingest.File
	Mixed        []byte
	MixStatus    MixStatus
}

// DualStem reports whether an instrumental/vocal pair is loaded
func (a AudioFiles) DualStem() bool {
	return a.Instrumental != nil && a.Vocal != nil
}

// Any reports whether any source is loaded
func (a AudioFiles) Any() bool {
	return a.Main != nil || a.Instrumental != nil || a.Vocal != nil
}

// Options configures a new session
type Options struct {
	// Defaults are applied to metadata on creation, reset and import
	Defaults lrc.Metadata
	// NewID generates line ids; nil uses uuids
	NewID timeline.IDGenerator
	// Now is the clock; nil uses time.Now
	Now func() time.Time
}

// Session is the aggregate root of one editing session. All methods are
// safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id       string
	opts     Options
	state    State
	audio    AudioFiles
	prefix   string
	lines    *timeline.Timeline
	metadata lrc.Metadata
	playback Playback
	active   int

	showLyricsInput bool
	addLyricIndex   int

	// generation identifies the loaded audio; revision identifies the
	// exported content. Both only grow.
	generation uint64
	revision   uint64

	// mixSeq numbers mixdown tickets; mixRunning is set while the last
	// ticket is outstanding
	mixSeq     uint64
	mixRunning bool

	load      *SourceLoad
	loadSeq   uint64
	updatedAt time.Time
}

// New creates an empty session
func New(id string, opts Options) *Session {
	if opts.NewID == nil {
		opts.NewID = timeline.NewUUID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Defaults = opts.Defaults.WithDefaults(lrc.DefaultMetadata())

	s := &Session{id: id, opts: opts}
	s.clearLocked()
	s.updatedAt = opts.Now()
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// UpdatedAt returns the time of the last mutation
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// State returns the lifecycle stage
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the current audio generation
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) clearLocked() {
	s.state = StateEmpty
	s.audio = AudioFiles{}
	s.prefix = ""
	s.lines = timeline.New(s.opts.NewID)
	s.metadata = s.opts.Defaults
	s.metadata.Extra = nil
	s.playback = Playback{Source: SourceMixed}
	s.active = timeline.NoLine
	s.showLyricsInput = false
	s.addLyricIndex = timeline.NoLine
	s.cancelLoadLocked()
	s.mixRunning = false
	s.generation++
	s.revision++
}

// touch records a content mutation
func (s *Session) touch() {
	s.revision++
	s.updatedAt = s.opts.Now()
	if s.state == StateExported || s.state == StateAudioLoaded {
		s.state = StateEditing
	}
}

// Reset discards everything. In-flight mixdowns and exports become stale.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.updatedAt = s.opts.Now()
	log.Infof("%s %s Reset", logcolors.LogSession, logcolors.Session(s.id))
}

// Ingest applies a classified batch. The batch replaces the loaded audio;
// lyrics and metadata are replaced only when the batch carries an LRC file.
func (s *Session) Ingest(batch *ingest.Batch) error {
	const op = "ingest"
	if batch == nil || (batch.Main == nil && !(batch.Instrumental != nil && batch.Vocal != nil)) {
		return newError(op, KindInvalid, ingest.ErrInvalidFileSelection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLoadLocked()
	s.mixRunning = false
	s.generation++
	s.audio = AudioFiles{
		Main:         batch.Main,
		Instrumental: batch.Instrumental,
		Vocal:        batch.Vocal,
	}
	if s.audio.DualStem() {
		s.audio.Main = nil
		s.audio.MixStatus = MixPending
	}
	s.prefix = batch.Prefix
	s.playback = Playback{Source: s.defaultSourceLocked()}

	if batch.HasLyrics() {
		s.lines = timeline.FromDocument(batch.Lyrics.Lines, s.opts.NewID)
		s.metadata = batch.Lyrics.Metadata.WithDefaults(s.opts.Defaults)
		s.showLyricsInput = false
	} else {
		s.showLyricsInput = s.lines.Len() == 0
	}
	s.recomputeActiveLocked()

	s.revision++
	s.updatedAt = s.opts.Now()
	if s.lines.Len() > 0 {
		s.state = StateEditing
	} else {
		s.state = StateAudioLoaded
	}

	log.Infof("%s %s Ingested prefix=%q dual=%v lines=%d (generation %d)",
		logcolors.LogSession, logcolors.Session(s.id), s.prefix, s.audio.DualStem(), s.lines.Len(), s.generation)
	return nil
}

// LoadLyricsText replaces the lines with untimed lines from raw text
func (s *Session) LoadLyricsText(text string) error {
	const op = "load lyrics"
	if strings.TrimSpace(text) == "" {
		return newError(op, KindInvalid, timeline.ErrEmptyText)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = timeline.FromText(text, s.opts.NewID)
	s.showLyricsInput = false
	s.recomputeActiveLocked()
	s.touch()
	s.state = StateEditing
	return nil
}

// ImportLRC replaces lines and metadata with the contents of an LRC file
func (s *Session) ImportLRC(data []byte) error {
	const op = "import lrc"
	doc, err := lrc.ParseBytes(data)
	if err != nil {
		return newError(op, KindInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = timeline.FromDocument(doc.Lines, s.opts.NewID)
	s.metadata = doc.Metadata.WithDefaults(s.opts.Defaults)
	s.showLyricsInput = false
	s.recomputeActiveLocked()
	s.touch()
	s.state = StateEditing

	log.Infof("%s %s Imported %d lines", logcolors.LogSession, logcolors.Session(s.id), s.lines.Len())
	return nil
}

// SetAddLyricIndex records where the next added line goes; -1 appends
func (s *Session) SetAddLyricIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 {
		index = timeline.NoLine
	}
	s.addLyricIndex = index
}

func (s *Session) recomputeActiveLocked() {
	s.active = s.lines.ActiveIndex(s.playback.CurrentTime)
}
