// Package audio decodes audio stems, mixes them and encodes the result as
// 16-bit PCM WAV.
package audio

import "time"

// Buffer holds decoded PCM audio as one float32 slice per channel.
// Samples are nominally in [-1, 1]; every channel has the same length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer allocates a silent buffer
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	b := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range b.Channels {
		b.Channels[ch] = make([]float32, frames)
	}
	return b
}

// Len returns the number of sample frames
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Duration returns the playback length
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

// sample returns channel ch at frame i, reusing the last channel when ch is
// past the channel count and returning silence past the end.
func (b *Buffer) sample(ch, i int) float32 {
	n := len(b.Channels)
	if n == 0 {
		return 0
	}
	if ch > n-1 {
		ch = n - 1
	}
	data := b.Channels[ch]
	if i >= len(data) {
		return 0
	}
	return data[i]
}

// deinterleave splits interleaved samples into a Buffer
func deinterleave(samples []float32, channels, sampleRate int) *Buffer {
	frames := len(samples) / channels
	b := NewBuffer(sampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			b.Channels[ch][i] = samples[i*channels+ch]
		}
	}
	return b
}
