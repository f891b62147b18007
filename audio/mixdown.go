package audio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"lrc-editor-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// RenderCache stores finished mixdowns by content key
type RenderCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// Mixdown decodes an instrumental and a vocal stem, mixes them and
// encodes the result as WAV
type Mixdown struct {
	Decoder Decoder
	Cache   RenderCache // optional

	// Ceiling, when > 0, hard-limits the mix before encoding
	Ceiling float32
}

type decodeResult struct {
	buf *Buffer
	err error
}

// Run produces the mixed WAV. Any decode failure yields ErrMixdownDecode
// and no output.
func (m *Mixdown) Run(ctx context.Context, instrumental, vocal []byte) ([]byte, error) {
	start := time.Now()

	key := MixKey(instrumental, vocal, m.Ceiling)
	if m.Cache != nil {
		if wav, ok := m.Cache.Get(key); ok {
			log.Debugf("%s Render cache hit for %s", logcolors.LogMixdown, key[:12])
			return wav, nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	insCh := make(chan decodeResult, 1)
	vocCh := make(chan decodeResult, 1)
	go m.decode(ctx, instrumental, insCh)
	go m.decode(ctx, vocal, vocCh)

	var ins, voc decodeResult
	for received := 0; received < 2; received++ {
		select {
		case ins = <-insCh:
			insCh = nil
			if ins.err != nil {
				return nil, fmt.Errorf("%w: instrumental: %v", ErrMixdownDecode, ins.err)
			}
		case voc = <-vocCh:
			vocCh = nil
			if voc.err != nil {
				return nil, fmt.Errorf("%w: vocal: %v", ErrMixdownDecode, voc.err)
			}
		}
	}

	mixed, err := Mix(ins.buf, voc.buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMixdownDecode, err)
	}
	if m.Ceiling > 0 {
		Limit(mixed, m.Ceiling)
	}

	wav := EncodeWAV(mixed)
	log.Infof("%s Mixed %v of audio at %d Hz in %v (%d bytes)",
		logcolors.LogMixdown, mixed.Duration().Round(time.Millisecond), mixed.SampleRate,
		time.Since(start).Round(time.Millisecond), len(wav))

	if m.Cache != nil {
		if err := m.Cache.Set(key, wav); err != nil {
			log.Warnf("%s Failed to cache render: %v", logcolors.LogMixdown, err)
		}
	}
	return wav, nil
}

func (m *Mixdown) decode(ctx context.Context, data []byte, out chan<- decodeResult) {
	buf, err := m.Decoder.Decode(ctx, data)
	out <- decodeResult{buf: buf, err: err}
}

// MixKey derives the render cache key for a pair of stems
func MixKey(instrumental, vocal []byte, ceiling float32) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%d:%g:", len(instrumental), len(vocal), ceiling)
	h.Write(instrumental)
	h.Write(vocal)
	return "mix:" + hex.EncodeToString(h.Sum(nil))
}
