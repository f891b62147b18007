package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestEncodeWAV_Header(t *testing.T) {
	buf := NewBuffer(44100, 2, 10)
	data := EncodeWAV(buf)

	if len(data) != 44+10*2*2 {
		t.Fatalf("Expected %d bytes, got %d", 44+40, len(data))
	}

	tests := []struct {
		name   string
		offset int
		want   uint32
		size   int
	}{
		{"riff size", 4, 36 + 40, 4},
		{"fmt size", 16, 16, 4},
		{"format", 20, 1, 2},
		{"channels", 22, 2, 2},
		{"sample rate", 24, 44100, 4},
		{"byte rate", 28, 44100 * 4, 4},
		{"block align", 32, 4, 2},
		{"bits", 34, 16, 2},
		{"data size", 40, 40, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uint32
			if tt.size == 2 {
				got = uint32(binary.LittleEndian.Uint16(data[tt.offset:]))
			} else {
				got = binary.LittleEndian.Uint32(data[tt.offset:])
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	for _, tag := range []struct {
		offset int
		want   string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(data[tag.offset : tag.offset+4]); got != tag.want {
			t.Errorf("tag at %d = %q, want %q", tag.offset, got, tag.want)
		}
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2, 32767},
		{-3, -32768},
		{0.5, 16383},
		{-0.5, -16384},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		if got := quantize(tt.in); got != tt.want {
			t.Errorf("quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncodeWAV_Interleaved(t *testing.T) {
	buf := &Buffer{SampleRate: 8000, Channels: [][]float32{{1, 0}, {-1, 0.5}}}
	data := EncodeWAV(buf)

	want := []int16{32767, -32768, 0, 16383}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(data[44+i*2:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestWAVDecoder_RoundTrip(t *testing.T) {
	src := NewBuffer(22050, 2, 500)
	for ch := range src.Channels {
		for i := range src.Channels[ch] {
			src.Channels[ch][i] = float32(math.Sin(float64(i+ch*7) / 20))
		}
	}

	decoded, err := WAVDecoder{}.Decode(context.Background(), EncodeWAV(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.SampleRate != 22050 {
		t.Errorf("Expected rate 22050, got %d", decoded.SampleRate)
	}
	if decoded.NumChannels() != 2 || decoded.Len() != 500 {
		t.Fatalf("Expected 2x500, got %dx%d", decoded.NumChannels(), decoded.Len())
	}
	for ch := range src.Channels {
		for i := range src.Channels[ch] {
			if diff := math.Abs(float64(decoded.Channels[ch][i] - src.Channels[ch][i])); diff > 1.0/8000 {
				t.Fatalf("sample[%d][%d] off by %v", ch, i, diff)
			}
		}
	}
}

func TestWAVDecoder_RejectsGarbage(t *testing.T) {
	if _, err := (WAVDecoder{}).Decode(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if _, err := (WAVDecoder{}).Decode(context.Background(), []byte("not a wav file at all")); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestWriteWAV_ReportsBytes(t *testing.T) {
	var out bytes.Buffer
	n, err := WriteWAV(&out, NewBuffer(8000, 1, 3))
	if err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if n != 50 || out.Len() != 50 {
		t.Errorf("Expected 50 bytes, got n=%d len=%d", n, out.Len())
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"wav", EncodeWAV(NewBuffer(8000, 1, 1)), FormatWAV},
		{"id3", []byte("ID3\x04\x00"), FormatMP3},
		{"frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"mpeg2 layer III", []byte{0xFF, 0xF3, 0x90, 0x00}, FormatMP3},
		{"adts aac", []byte{0xFF, 0xF1, 0x50, 0x80}, FormatUnknown},
		{"adts aac mpeg2", []byte{0xFF, 0xF9, 0x50, 0x80}, FormatUnknown},
		{"mpeg layer II", []byte{0xFF, 0xFD, 0x90, 0x00}, FormatUnknown},
		{"riff not wave", []byte("RIFF\x00\x00\x00\x00AVI "), FormatUnknown},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A "), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniffDecoder_Fallback(t *testing.T) {
	called := false
	fallback := DecoderFunc(func(ctx context.Context, data []byte) (*Buffer, error) {
		called = true
		return NewBuffer(44100, 2, 1), nil
	})

	d := NewSniffDecoder(fallback)
	if _, err := d.Decode(context.Background(), []byte("\x00\x00\x00\x20ftypM4A ")); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !called {
		t.Error("Expected fallback decoder for unknown format")
	}

	d = NewSniffDecoder(nil)
	if _, err := d.Decode(context.Background(), []byte("OggS")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat without fallback, got %v", err)
	}
	if _, err := d.Decode(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestSniffDecoder_MP3FailureFallsBack(t *testing.T) {
	var calls int
	fallback := DecoderFunc(func(ctx context.Context, data []byte) (*Buffer, error) {
		calls++
		return NewBuffer(8000, 1, 4), nil
	})
	mp3 := DecoderFunc(func(ctx context.Context, data []byte) (*Buffer, error) {
		return nil, errors.New("not really mp3")
	})

	d := &SniffDecoder{WAV: WAVDecoder{}, MP3: mp3, Fallback: fallback}
	buf, err := d.Decode(context.Background(), []byte{0xFF, 0xFB, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Expected fallback to decode, got %v", err)
	}
	if calls != 1 || buf.Len() != 4 {
		t.Errorf("Expected one fallback call with 4 frames, got %d calls", calls)
	}

	d.Fallback = nil
	if _, err := d.Decode(context.Background(), []byte{0xFF, 0xFB, 0x00, 0x00}); err == nil {
		t.Error("Expected the MP3 error without a fallback")
	}
}

// write24BitWAV encodes interleaved samples with the go-audio encoder,
// which needs a seekable file
func write24BitWAV(t *testing.T, rate, channels int, data []int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stem.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 24, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 24,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close encoder failed: %v", err)
	}
	f.Close()

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	return out
}

func TestWAVDecoder_24Bit(t *testing.T) {
	const half = 1 << 22
	data := write24BitWAV(t, 48000, 2, []int{half, -half, 0, half / 2})

	decoded, err := WAVDecoder{}.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.SampleRate != 48000 || decoded.NumChannels() != 2 || decoded.Len() != 2 {
		t.Fatalf("Expected 48000 Hz 2x2, got %d Hz %dx%d", decoded.SampleRate, decoded.NumChannels(), decoded.Len())
	}

	want := [][]float32{{0.5, 0}, {-0.5, 0.25}}
	for ch := range want {
		for i, v := range want[ch] {
			if got := decoded.Channels[ch][i]; math.Abs(float64(got-v)) > 1e-6 {
				t.Errorf("sample[%d][%d]: expected %v, got %v", ch, i, v, got)
			}
		}
	}
}
