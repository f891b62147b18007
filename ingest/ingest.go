// Package ingest validates and classifies an uploaded batch of audio and
// LRC files before anything is applied to a session.
package ingest

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidFileSelection is returned for batches with no audio, more than
	// two audio files, or two files that are not an instrumental/vocal pair
	ErrInvalidFileSelection = errors.New("invalid file selection")

	// ErrMismatchedPrefix is returned when two stems do not share a prefix
	ErrMismatchedPrefix = errors.New("audio files do not share a prefix")
)

const (
	suffixInstrumental = "_ins"
	suffixVocal        = "_vol"
	maxAudioFiles      = 2
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// File is one uploaded file
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Role is the part an audio file plays in a session
type Role string

const (
	RoleMain         Role = "main"
	RoleInstrumental Role = "instrumental"
	RoleVocal        Role = "vocal"
)

// Batch is a validated upload
type Batch struct {
	Prefix       string
	Main         *File
	Instrumental *File
	Vocal        *File

	// Lyrics is set when the batch carried an .lrc file
	Lyrics *lrc.Document
	// LyricsFile is the name of that .lrc file
	LyricsFile string
}

// HasLyrics reports whether the batch included an LRC file
func (b *Batch) HasLyrics() bool {
	return b.Lyrics != nil
}

// FilePrefix derives the song prefix from a file name: the extension is
// removed, then a trailing _vol or _ins.
func FilePrefix(name string) string {
	name = norm.NFC.String(baseName(name))
	if ext := path.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	switch {
	case strings.HasSuffix(name, suffixVocal):
		return strings.TrimSuffix(name, suffixVocal)
	case strings.HasSuffix(name, suffixInstrumental):
		return strings.TrimSuffix(name, suffixInstrumental)
	}
	return name
}

// IsAudio reports whether f looks like an audio file by extension or
// content type
func IsAudio(f File) bool {
	if strings.HasPrefix(strings.ToLower(f.ContentType), "audio/") {
		return true
	}
	return audioExtensions[strings.ToLower(path.Ext(f.Name))]
}

// IsLRC reports whether f is an LRC file
func IsLRC(f File) bool {
	return strings.EqualFold(path.Ext(f.Name), ".lrc")
}

// Classify validates a batch. On error nothing in the batch is usable.
func Classify(files []File) (*Batch, error) {
	var audio, lyrics []File
	for _, f := range files {
		switch {
		case IsLRC(f):
			lyrics = append(lyrics, f)
		case IsAudio(f):
			audio = append(audio, f)
		default:
			log.Debugf("%s Ignoring %q", logcolors.LogIngest, f.Name)
		}
	}

	batch := &Batch{}

	switch len(audio) {
	case 0:
		return nil, fmt.Errorf("%w: select at least one audio file", ErrInvalidFileSelection)
	case 1:
		batch.Main = &audio[0]
		batch.Prefix = FilePrefix(audio[0].Name)
	case maxAudioFiles:
		if err := assignStems(batch, audio[0], audio[1]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: at most %d audio files, got %d", ErrInvalidFileSelection, maxAudioFiles, len(audio))
	}

	if len(lyrics) > 0 {
		doc, err := lrc.ParseBytes(lyrics[0].Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lyrics[0].Name, err)
		}
		doc.Metadata = doc.Metadata.WithDefaults(lrc.DefaultMetadata())
		batch.Lyrics = doc
		batch.LyricsFile = lyrics[0].Name
	}

	log.Infof("%s Classified batch prefix=%q main=%v instrumental=%v vocal=%v lyrics=%v",
		logcolors.LogIngest, batch.Prefix, batch.Main != nil, batch.Instrumental != nil,
		batch.Vocal != nil, batch.HasLyrics())
	return batch, nil
}

func assignStems(batch *Batch, a, b File) error {
	pa, pb := FilePrefix(a.Name), FilePrefix(b.Name)
	if pa != pb {
		return fmt.Errorf("%w: %q vs %q, name them prefix_ins and prefix_vol", ErrMismatchedPrefix, pa, pb)
	}

	ra, rb := stemRole(a.Name), stemRole(b.Name)
	if ra == rb || ra == RoleMain || rb == RoleMain {
		return fmt.Errorf("%w: cannot tell instrumental from vocal in %q and %q", ErrInvalidFileSelection, a.Name, b.Name)
	}

	batch.Prefix = pa
	if ra == RoleInstrumental {
		batch.Instrumental, batch.Vocal = &a, &b
	} else {
		batch.Instrumental, batch.Vocal = &b, &a
	}
	return nil
}

// stemRole classifies a stem by its _ins/_vol suffix, falling back to a
// substring match on the whole name
func stemRole(name string) Role {
	name = strings.ToLower(norm.NFC.String(baseName(name)))
	stem := strings.TrimSuffix(name, path.Ext(name))

	switch {
	case strings.HasSuffix(stem, suffixInstrumental):
		return RoleInstrumental
	case strings.HasSuffix(stem, suffixVocal):
		return RoleVocal
	case strings.Contains(name, "ins"), strings.Contains(name, "instrumental"):
		return RoleInstrumental
	case strings.Contains(name, "vol"), strings.Contains(name, "vocal"):
		return RoleVocal
	}
	return RoleMain
}

// baseName strips any directory part a browser or client may send
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
