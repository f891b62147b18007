package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III audio. The decoder always yields
// 16-bit little-endian stereo.
type MP3Decoder struct{}

const mp3Channels = 2

func (MP3Decoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(contextReader{ctx: ctx, r: d})
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	frames := len(raw) / (2 * mp3Channels)
	buf := NewBuffer(d.SampleRate(), mp3Channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < mp3Channels; ch++ {
			off := (i*mp3Channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(raw[off : off+2]))
			buf.Channels[ch][i] = float32(v) / 0x8000
		}
	}
	return buf, nil
}

// contextReader stops a long decode once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
