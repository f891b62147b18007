package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

const (
	wavHeaderSize    = 44
	wavFormatPCM     = 1
	wavBitsPerSample = 16
)

// WAVDecoder decodes integer PCM WAV files (8, 16, 24 or 32 bit)
type WAVDecoder struct{}

func (WAVDecoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("wav: audio format %d: %w", d.WavAudioFormat, ErrUnsupportedFormat)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	channels := pcm.Format.NumChannels
	bitDepth := pcm.SourceBitDepth
	if channels <= 0 || pcm.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav: missing format chunk: %w", ErrUnsupportedFormat)
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("wav: bit depth %d: %w", bitDepth, ErrUnsupportedFormat)
	}

	samples := make([]float32, len(pcm.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		for i, v := range pcm.Data {
			samples[i] = float32(v-128) / 128
		}
	} else {
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range pcm.Data {
			samples[i] = float32(v) / scale
		}
	}

	return deinterleave(samples, channels, pcm.Format.SampleRate), nil
}

// EncodeWAV renders buf as a 16-bit PCM WAV file
func EncodeWAV(buf *Buffer) []byte {
	var out bytes.Buffer
	out.Grow(wavHeaderSize + buf.Len()*buf.NumChannels()*2)
	// bytes.Buffer writes cannot fail
	_, _ = WriteWAV(&out, buf)
	return out.Bytes()
}

// WriteWAV streams buf to w as a 16-bit PCM WAV file with a 44-byte header.
// Samples are clamped to [-1, 1]; negative values scale by 0x8000 and
// positive values by 0x7FFF, truncating toward zero.
func WriteWAV(w io.Writer, buf *Buffer) (int64, error) {
	channels := buf.NumChannels()
	frames := buf.Len()
	blockAlign := channels * wavBitsPerSample / 8
	byteRate := buf.SampleRate * blockAlign
	dataSize := frames * blockAlign

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	bw := bufio.NewWriter(w)
	written, err := bw.Write(header)
	total := int64(written)
	if err != nil {
		return total, err
	}

	var sample [2]byte
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(sample[:], uint16(quantize(buf.Channels[ch][i])))
			n, err := bw.Write(sample[:])
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, bw.Flush()
}

// quantize converts a float sample to signed 16-bit
func quantize(v float32) int16 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(v * 0x8000)
	}
	return int16(v * 0x7FFF)
}
