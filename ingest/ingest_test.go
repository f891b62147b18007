package ingest

import (
	"errors"
	"testing"

	"lrc-editor-go/lrc"
)

func TestFilePrefix(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"song.mp3", "song"},
		{"song_ins.mp3", "song"},
		{"song_vol.wav", "song"},
		{"my.song_vol.mp3", "my.song"},
		{"song", "song"},
		{"song_ins_vol.mp3", "song_ins"},
		{"dir/sub/song_ins.mp3", "song"},
		{`C:\music\song_vol.mp3`, "song"},
		{"cafe\u0301_ins.mp3", "caf\u00e9"}, // NFD input
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilePrefix(tt.name); got != tt.expected {
				t.Errorf("FilePrefix(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestIsAudio(t *testing.T) {
	tests := []struct {
		file     File
		expected bool
	}{
		{File{Name: "a.mp3"}, true},
		{File{Name: "a.WAV"}, true},
		{File{Name: "a.m4a"}, true},
		{File{Name: "a.flac"}, true},
		{File{Name: "a.bin", ContentType: "audio/mpeg"}, true},
		{File{Name: "a.txt", ContentType: "text/plain"}, false},
		{File{Name: "a.lrc"}, false},
	}
	for _, tt := range tests {
		if got := IsAudio(tt.file); got != tt.expected {
			t.Errorf("IsAudio(%+v) = %v, want %v", tt.file, got, tt.expected)
		}
	}
}

func TestClassify_SingleFile(t *testing.T) {
	batch, err := Classify([]File{{Name: "track.mp3", Data: []byte{1}}})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if batch.Main == nil || batch.Main.Name != "track.mp3" {
		t.Errorf("Expected main track, got %+v", batch.Main)
	}
	if batch.Prefix != "track" {
		t.Errorf("Expected prefix 'track', got %q", batch.Prefix)
	}
	if batch.HasLyrics() {
		t.Error("Expected no lyrics")
	}
}

func TestClassify_StemPair(t *testing.T) {
	batch, err := Classify([]File{
		{Name: "song_vol.mp3"},
		{Name: "song_ins.mp3"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if batch.Prefix != "song" {
		t.Errorf("Expected prefix 'song', got %q", batch.Prefix)
	}
	if batch.Main != nil {
		t.Error("Expected no main track for a stem pair")
	}
	if batch.Instrumental == nil || batch.Instrumental.Name != "song_ins.mp3" {
		t.Errorf("Instrumental = %+v", batch.Instrumental)
	}
	if batch.Vocal == nil || batch.Vocal.Name != "song_vol.mp3" {
		t.Errorf("Vocal = %+v", batch.Vocal)
	}
}

func TestClassify_SuffixBeatsSubstring(t *testing.T) {
	// "insomnia" contains "ins" but the suffix decides
	batch, err := Classify([]File{
		{Name: "insomnia_vol.mp3"},
		{Name: "insomnia_ins.mp3"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if batch.Vocal.Name != "insomnia_vol.mp3" {
		t.Errorf("Vocal = %q", batch.Vocal.Name)
	}
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files []File
		want  error
	}{
		{"no files", nil, ErrInvalidFileSelection},
		{"only lrc", []File{{Name: "a.lrc"}}, ErrInvalidFileSelection},
		{"three audio", []File{{Name: "a.mp3"}, {Name: "b.mp3"}, {Name: "c.mp3"}}, ErrInvalidFileSelection},
		{"mismatched", []File{{Name: "song.mp3"}, {Name: "other.mp3"}}, ErrMismatchedPrefix},
		{"mismatched stems", []File{{Name: "a_ins.mp3"}, {Name: "b_vol.mp3"}}, ErrMismatchedPrefix},
		{"same role", []File{{Name: "x_ins.mp3"}, {Name: "x_ins.wav"}}, ErrInvalidFileSelection},
		{"malformed lrc", []File{{Name: "a.mp3"}, {Name: "a.lrc", Data: []byte("bad\x00data")}}, lrc.ErrMalformedLRC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Classify(tt.files)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if batch != nil {
				t.Error("Expected no batch on error")
			}
		})
	}
}

func TestClassify_WithLyrics(t *testing.T) {
	content := "[ti:Song]\n[00:01.00]Hello\n[00:03.00]World\n"
	batch, err := Classify([]File{
		{Name: "song.lrc", Data: []byte(content)},
		{Name: "song.mp3", ContentType: "audio/mpeg"},
		{Name: "cover.jpg"},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !batch.HasLyrics() {
		t.Fatal("Expected lyrics")
	}
	if len(batch.Lyrics.Lines) != 2 {
		t.Errorf("Expected 2 lines, got %d", len(batch.Lyrics.Lines))
	}
	if batch.Lyrics.Metadata.Title != "Song" {
		t.Errorf("Expected title 'Song', got %q", batch.Lyrics.Metadata.Title)
	}
	if batch.Lyrics.Metadata.CreatedBy != lrc.DefaultCreatedBy {
		t.Errorf("Expected default by, got %q", batch.Lyrics.Metadata.CreatedBy)
	}
}
