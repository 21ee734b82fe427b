package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/observability"
)

// player is the part of *speaker.Device the sink needs.
type player interface {
	Play(s ...beep.Streamer) error
	Resample(from beep.SampleRate, s beep.Streamer) beep.Streamer
}

// SpeakerSink plays speech on the shared speaker device.
type SpeakerSink struct {
	out    player
	logger zerolog.Logger

	mu      sync.Mutex
	current *haltable
}

// NewSpeakerSink creates a sink on out, normally a *speaker.Device.
func NewSpeakerSink(out player) *SpeakerSink {
	return &SpeakerSink{
		out:    out,
		logger: observability.WithComponent("speech-sink"),
	}
}

// Play decodes speech and blocks until it finishes or is halted.
func (s *SpeakerSink) Play(ctx context.Context, speech Speech) error {
	stream, format, err := decodeSpeech(speech)
	if err != nil {
		return err
	}
	h := newHaltable(s.out.Resample(format.SampleRate, stream))
	// Once halt returns no Stream call is in flight, so the decoder can go.
	defer func() {
		h.halt()
		stream.Close()
	}()

	s.mu.Lock()
	if prev := s.current; prev != nil {
		prev.halt()
	}
	s.current = h
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.current == h {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	if err := s.out.Play(h); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	select {
	case <-h.done:
	case <-ctx.Done():
		h.halt()
		return ctx.Err()
	}

	if err := h.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return nil
}

// Halt stops the current item, if any.
func (s *SpeakerSink) Halt() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.halt()
		s.logger.Debug().Msg("Speech halted")
	}
}

// haltable ends its stream early on halt and closes done when the stream
// ends either way. mu is held across every pull from s.
type haltable struct {
	mu     sync.Mutex
	s      beep.Streamer
	halted bool
	done   chan struct{}
	once   sync.Once
}

func newHaltable(s beep.Streamer) *haltable {
	return &haltable{s: s, done: make(chan struct{})}
}

func (h *haltable) Stream(samples [][2]float64) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.halted {
		h.finish()
		return 0, false
	}
	n, ok := h.s.Stream(samples)
	if !ok {
		h.finish()
	}
	return n, ok
}

func (h *haltable) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s.Err()
}

// halt waits for an in-flight Stream call to return.
func (h *haltable) halt() {
	h.mu.Lock()
	h.halted = true
	h.mu.Unlock()
	h.finish()
}

func (h *haltable) finish() {
	h.once.Do(func() { close(h.done) })
}

// decodeSpeech turns a Speech into a beep stream. Raw PCM is wrapped in a
// WAV container first.
func decodeSpeech(speech Speech) (beep.StreamSeekCloser, beep.Format, error) {
	data := speech.Data
	format := speech.Format
	if format == "" || format == FormatPCM {
		rate := speech.SampleRate
		if rate <= 0 {
			rate = audio.DefaultPlaybackRate
		}
		wavData, err := audio.PCMToWAV(data, rate)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrPlayback, err)
		}
		data = wavData
		format = FormatWAV
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: invalid base64 audio: %v", ErrPlayback, err)
	}

	var (
		stream beep.StreamSeekCloser
		bf     beep.Format
	)
	switch format {
	case FormatWAV:
		stream, bf, err = wav.Decode(bytes.NewReader(raw))
	case FormatMP3:
		stream, bf, err = mp3.Decode(io.NopCloser(bytes.NewReader(raw)))
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: unsupported format %q", ErrPlayback, speech.Format)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: decode %s: %v", ErrPlayback, format, err)
	}
	return stream, bf, nil
}
