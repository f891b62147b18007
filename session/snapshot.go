package session

import (
	"time"

	"lrc-editor-go/ingest"
	"lrc-editor-go/lrc"
	"lrc-editor-go/timeline"
)

// FileInfo describes a loaded file without its bytes
type FileInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int    `json:"size"`
}

// FilesInfo describes the loaded sources
type FilesInfo struct {
	Main         *FileInfo `json:"main"`
	Instrumental *FileInfo `json:"instrumental"`
	Vocal        *FileInfo `json:"vocal"`
	Mixed        MixStatus `json:"mixed,omitempty"`
}

// Snapshot is an immutable copy of a session for rendering
type Snapshot struct {
	ID              string               `json:"id"`
	State           State                `json:"state"`
	Prefix          string               `json:"prefix"`
	Files           FilesInfo            `json:"files"`
	Metadata        lrc.Metadata         `json:"metadata"`
	Lines           []timeline.TimedLine `json:"lines"`
	Stats           timeline.Stats       `json:"stats"`
	Playback        Playback             `json:"playback"`
	ActiveIndex     int                  `json:"activeIndex"`
	PendingLoad     *SourceLoad          `json:"pendingLoad,omitempty"`
	ShowLyricsInput bool                 `json:"showLyricsInput"`
	AddLyricIndex   int                  `json:"addLyricIndex"`
	Generation      uint64               `json:"generation"`
	Revision        uint64               `json:"revision"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// Snapshot copies the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:     s.id,
		State:  s.state,
		Prefix: s.prefix,
		Files: FilesInfo{
			Main:         fileInfo(s.audio.Main),
			Instrumental: fileInfo(s.audio.Instrumental),
			Vocal:        fileInfo(s.audio.Vocal),
			Mixed:        s.audio.MixStatus,
		},
		Metadata:        s.metadata.Clone(),
		Lines:           s.lines.Lines(),
		Stats:           s.lines.Stats(),
		Playback:        s.playback,
		ActiveIndex:     s.active,
		ShowLyricsInput: s.showLyricsInput,
		AddLyricIndex:   s.addLyricIndex,
		Generation:      s.generation,
		Revision:        s.revision,
		UpdatedAt:       s.updatedAt,
	}
	if s.load != nil {
		snap.PendingLoad = &SourceLoad{
			ID:       s.load.ID,
			Source:   s.load.Source,
			Position: s.load.Position,
			Resume:   s.load.Resume,
		}
	}
	return snap
}

func fileInfo(f *ingest.File) *FileInfo {
	if f == nil {
		return nil
	}
	return &FileInfo{Name: f.Name, ContentType: f.ContentType, Size: len(f.Data)}
}
