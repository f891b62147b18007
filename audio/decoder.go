package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMixdownDecode is returned when a stem cannot be decoded for mixing
	ErrMixdownDecode = errors.New("failed to decode audio for mixdown")

	// ErrUnsupportedFormat is returned when no decoder recognizes the input
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrEmptyInput is returned for zero-length audio data
	ErrEmptyInput = errors.New("empty audio data")
)

// Decoder turns encoded audio bytes into PCM
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Buffer, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(ctx context.Context, data []byte) (*Buffer, error)

func (f DecoderFunc) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	return f(ctx, data)
}

// Format identifies a container by its magic bytes
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Sniff inspects leading bytes to detect WAV or MP3 data
func Sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 == 0x02:
		// MPEG frame sync with layer III. ADTS AAC shares the sync bits
		// but always has layer 00.
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// SniffDecoder dispatches to a decoder by detected format. Fallback, when
// set, handles everything else (m4a, ogg, flac through ffmpeg).
type SniffDecoder struct {
	WAV      Decoder
	MP3      Decoder
	Fallback Decoder
}

// NewSniffDecoder returns a SniffDecoder with the built-in WAV and MP3
// decoders and an optional fallback
func NewSniffDecoder(fallback Decoder) *SniffDecoder {
	return &SniffDecoder{
		WAV:      WAVDecoder{},
		MP3:      MP3Decoder{},
		Fallback: fallback,
	}
}

func (d *SniffDecoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var dec Decoder
	format := Sniff(data)
	switch format {
	case FormatWAV:
		dec = d.WAV
	case FormatMP3:
		dec = d.MP3
	}
	if dec == nil {
		dec = d.Fallback
	}
	if dec == nil {
		return nil, ErrUnsupportedFormat
	}

	buf, err := dec.Decode(ctx, data)
	if err != nil && format == FormatMP3 && d.Fallback != nil && ctx.Err() == nil {
		// Anything that merely looks like MP3 gets a second chance
		buf, err = d.Fallback.Decode(ctx, data)
	}
	if err != nil {
		return nil, err
	}
	if buf.NumChannels() == 0 || buf.SampleRate <= 0 {
		return nil, fmt.Errorf("decoder returned no audio: %w", ErrUnsupportedFormat)
	}
	return buf, nil
}
