package audio

import (
	"errors"
	"math"
)

// MixChannels is the channel count of every mixdown
const MixChannels = 2

var errNoAudio = errors.New("buffer has no audio")

// Mix averages two buffers into a stereo buffer at a's sample rate.
// The result is as long as the longer input; the shorter one contributes
// silence past its end. Mono inputs feed both output channels.
func Mix(a, b *Buffer) (*Buffer, error) {
	if a.NumChannels() == 0 || a.SampleRate <= 0 {
		return nil, errNoAudio
	}
	if b.NumChannels() == 0 || b.SampleRate <= 0 {
		return nil, errNoAudio
	}
	if b.SampleRate != a.SampleRate {
		b = Resample(b, a.SampleRate)
	}

	frames := a.Len()
	if b.Len() > frames {
		frames = b.Len()
	}

	out := NewBuffer(a.SampleRate, MixChannels, frames)
	for ch := 0; ch < MixChannels; ch++ {
		dst := out.Channels[ch]
		for i := range dst {
			dst[i] = (a.sample(ch, i) + b.sample(ch, i)) * 0.5
		}
	}
	return out, nil
}

// Resample converts buf to rate with linear interpolation
func Resample(buf *Buffer, rate int) *Buffer {
	if buf.SampleRate == rate || rate <= 0 || buf.Len() == 0 {
		return buf
	}

	ratio := float64(buf.SampleRate) / float64(rate)
	frames := int(math.Ceil(float64(buf.Len()) / ratio))
	out := NewBuffer(rate, buf.NumChannels(), frames)

	last := buf.Len() - 1
	for ch, src := range buf.Channels {
		dst := out.Channels[ch]
		for i := range dst {
			pos := float64(i) * ratio
			j := int(pos)
			if j >= last {
				dst[i] = src[last]
				continue
			}
			frac := float32(pos - float64(j))
			dst[i] = src[j] + (src[j+1]-src[j])*frac
		}
	}
	return out
}

// Limit hard-clips every sample to [-ceiling, ceiling] in place
func Limit(buf *Buffer, ceiling float32) {
	if ceiling <= 0 {
		return
	}
	for _, data := range buf.Channels {
		for i, v := range data {
			if v > ceiling {
				data[i] = ceiling
			} else if v < -ceiling {
				data[i] = -ceiling
			}
		}
	}
}
