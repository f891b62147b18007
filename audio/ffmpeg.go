package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"lrc-editor-go/circuitbreaker"
	"lrc-editor-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const ffmpegChannels = 2

// FFmpegDecoder shells out to ffmpeg for containers the pure-Go decoders do
// not handle. Output is float32 LE stereo at SampleRate.
type FFmpegDecoder struct {
	Path       string
	SampleRate int
	Breaker    *circuitbreaker.CircuitBreaker
}

// NewFFmpegDecoder creates a decoder guarded by breaker; breaker may be nil
func NewFFmpegDecoder(path string, sampleRate int, breaker *circuitbreaker.CircuitBreaker) *FFmpegDecoder {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &FFmpegDecoder{Path: path, SampleRate: sampleRate, Breaker: breaker}
}

func (f *FFmpegDecoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	if f.Breaker == nil {
		return f.run(ctx, data)
	}

	var buf *Buffer
	err := f.Breaker.Execute(func() error {
		var err error
		buf, err = f.run(ctx, data)
		return err
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			log.Warnf("%s Skipping decode, retry in %v", logcolors.LogFFmpeg, f.Breaker.TimeUntilRetry())
		}
		return nil, err
	}
	return buf, nil
}

func (f *FFmpegDecoder) run(ctx context.Context, data []byte) (*Buffer, error) {
	cmd := exec.CommandContext(ctx, f.Path,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(ffmpegChannels),
		"-ar", strconv.Itoa(f.SampleRate),
		"pipe:1")

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		log.Errorf("%s Decode failed: %v (%s)", logcolors.LogFFmpeg, err, msg)
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}

	raw := stdout.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	log.Debugf("%s Decoded %d bytes into %d frames", logcolors.LogFFmpeg, len(data), len(samples)/ffmpegChannels)

	return deinterleave(samples, ffmpegChannels, f.SampleRate), nil
}
