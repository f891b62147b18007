package export

import (
	"time"

	"lrc-editor-go/timeline"
)

// Descriptor is the project.json document
type Descriptor struct {
	Project    ProjectInfo    `json:"project"`
	Metadata   MetadataInfo   `json:"metadata"`
	Lyrics     []LyricInfo    `json:"lyrics"`
	Statistics StatisticsInfo `json:"statistics"`
	Files      FilesInfo      `json:"files"`
}

type ProjectInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Version     string `json:"version"`
	Editor      string `json:"editor"`
}

type MetadataInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Author string `json:"author"`
	Length string `json:"length"`
	Offset int    `json:"offset"`
}

type LyricInfo struct {
	ID        string   `json:"id"`
	Index     int      `json:"index"`
	Text      string   `json:"text"`
	StartTime *float64 `json:"startTime"`
	EndTime   *float64 `json:"endTime"`
	Duration  *float64 `json:"duration"`
}

type StatisticsInfo struct {
	TotalLines     int      `json:"totalLines"`
	TimedLines     int      `json:"timedLines"`
	CompletedLines int      `json:"completedLines"`
	TotalDuration  *float64 `json:"totalDuration"`
}

type FilesInfo struct {
	HasMainAudio    bool   `json:"hasMainAudio"`
	HasInstrumental bool   `json:"hasInstrumental"`
	HasVocal        bool   `json:"hasVocal"`
	Prefix          string `json:"prefix"`
}

// NewDescriptor builds the project.json contents for p
func NewDescriptor(p *Project) Descriptor {
	created := p.Created
	if created.IsZero() {
		created = time.Now()
	}

	name := p.Metadata.Title
	if name == "" {
		name = untitledName
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = defaultName
	}

	lyrics := make([]LyricInfo, len(p.Lines))
	for i, l := range p.Lines {
		info := LyricInfo{
			ID:        l.ID,
			Index:     i + 1,
			Text:      l.Text,
			StartTime: l.StartTime,
			EndTime:   l.EndTime,
		}
		if l.StartTime != nil && l.EndTime != nil {
			d := *l.EndTime - *l.StartTime
			info.Duration = &d
		}
		lyrics[i] = info
	}

	stats := timeline.StatsOf(p.Lines)

	return Descriptor{
		Project: ProjectInfo{
			Name:        name,
			Description: ProjectDescription,
			Created:     created.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Version:     ProjectVersion,
			Editor:      ProjectEditor,
		},
		Metadata: MetadataInfo{
			Title:  p.Metadata.Title,
			Artist: p.Metadata.Artist,
			Album:  p.Metadata.Album,
			Author: p.Metadata.Author,
			Length: p.Metadata.Length,
			Offset: p.Metadata.Offset,
		},
		Lyrics: lyrics,
		Statistics: StatisticsInfo{
			TotalLines:     stats.TotalLines,
			TimedLines:     stats.TimedLines,
			CompletedLines: stats.CompletedLines,
			TotalDuration:  stats.TotalDuration,
		},
		Files: FilesInfo{
			HasMainAudio:    p.Main != nil,
			HasInstrumental: p.Instrumental != nil,
			HasVocal:        p.Vocal != nil,
			Prefix:          prefix,
		},
	}
}
