// Package export renders a session as an LRC file or as a project ZIP
// bundling the lyrics, the source audio and a project.json descriptor.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lrc-editor-go/logcolors"
	"lrc-editor-go/lrc"
	"lrc-editor-go/timeline"
	"lrc-editor-go/utils"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrExportFailure is returned when the archive cannot be assembled
	ErrExportFailure = errors.New("export failed")

	// ErrNothingToExport is returned when there are no lyric lines
	ErrNothingToExport = errors.New("no lyrics to export")

	// ErrNoAudio is returned for archive exports without any audio source
	ErrNoAudio = errors.New("no audio to export")
)

const (
	ProjectDescription = "LRC Editor Project File"
	ProjectVersion     = "1.0"
	ProjectEditor      = "LRC Editor v1.0"
	ProjectFileName    = "project.json"

	defaultName  = "lyrics"
	untitledName = "Untitled"
)

// Audio is one source file included in the archive
type Audio struct {
	Name string
	Data []byte
}

// Project is everything an export needs, detached from the live session
type Project struct {
	Metadata     lrc.Metadata
	Lines        []timeline.TimedLine
	Prefix       string
	Main         *Audio
	Instrumental *Audio
	Vocal        *Audio
	Created      time.Time
}

// HasAudio reports whether any source is present
func (p *Project) HasAudio() bool {
	return p.Main != nil || p.Instrumental != nil || p.Vocal != nil
}

// LRCFileName returns {prefix}.lrc or lyrics.lrc
func LRCFileName(prefix string) string {
	if prefix == "" {
		return defaultName + ".lrc"
	}
	return prefix + ".lrc"
}

// ArchiveFileName names the ZIP after the title, then the prefix, with
// characters that are unsafe in file names replaced by underscores
func ArchiveFileName(title, prefix string) string {
	name := title
	if name == "" {
		name = prefix
	}
	if name == "" {
		name = defaultName
	}
	return utils.SanitizeFileName(name) + ".zip"
}

// AudioFileNames returns the archive names for main, instrumental and vocal
func AudioFileNames(prefix string) (main, instrumental, vocal string) {
	if prefix == "" {
		return "audio.mp3", "instrumental.mp3", "vocal.mp3"
	}
	return prefix + ".mp3", prefix + "_ins.mp3", prefix + "_vol.mp3"
}

// LRC serializes the project lyrics
func LRC(p *Project) ([]byte, error) {
	if len(p.Lines) == 0 {
		return nil, ErrNothingToExport
	}
	return []byte(lrc.Serialize(p.Metadata, toLRCLines(p.Lines))), nil
}

func toLRCLines(lines []timeline.TimedLine) []lrc.Line {
	out := make([]lrc.Line, len(lines))
	for i, l := range lines {
		out[i] = lrc.Line{Text: l.Text, Start: l.StartTime, End: l.EndTime}
	}
	return out
}

// BuildArchive assembles the project ZIP in memory. On any failure the
// partial archive is discarded and ErrExportFailure is returned.
func BuildArchive(ctx context.Context, p *Project) ([]byte, error) {
	if len(p.Lines) == 0 {
		return nil, ErrNothingToExport
	}
	if !p.HasAudio() {
		return nil, ErrNoAudio
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := writeArchive(ctx, &buf, p); err != nil {
		log.Errorf("%s Failed to build archive: %v", logcolors.LogExport, err)
		return nil, fmt.Errorf("%w: %v", ErrExportFailure, err)
	}

	log.Infof("%s Built archive for %q (%d lines, %d bytes) in %v",
		logcolors.LogExport, p.Prefix, len(p.Lines), buf.Len(), time.Since(start).Round(time.Millisecond))
	return buf.Bytes(), nil
}

func writeArchive(ctx context.Context, buf *bytes.Buffer, p *Project) error {
	zw := zip.NewWriter(buf)

	lrcData, err := LRC(p)
	if err != nil {
		return err
	}
	if err := addFile(zw, LRCFileName(p.Prefix), lrcData, p.Created); err != nil {
		return err
	}

	mainName, insName, vocName := AudioFileNames(p.Prefix)
	for _, f := range []struct {
		name  string
		audio *Audio
	}{
		{mainName, p.Main},
		{insName, p.Instrumental},
		{vocName, p.Vocal},
	} {
		if f.audio == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(zw, f.name, f.audio.Data, p.Created); err != nil {
			return err
		}
	}

	descriptor, err := json.MarshalIndent(NewDescriptor(p), "", "  ")
	if err != nil {
		return err
	}
	if err := addFile(zw, ProjectFileName, descriptor, p.Created); err != nil {
		return err
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
