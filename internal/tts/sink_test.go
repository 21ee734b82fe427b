package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"

	"github.com/lexiqai/live-tutor/internal/audio"
)

// drainPlayer renders each streamer to completion on its own goroutine.
type drainPlayer struct {
	mu     sync.Mutex
	frames int
	hold   bool
	held   []beep.Streamer
}

func (p *drainPlayer) Play(s ...beep.Streamer) error {
	if p.hold {
		p.mu.Lock()
		p.held = append(p.held, s...)
		p.mu.Unlock()
		return nil
	}
	go func() {
		buf := make([][2]float64, 512)
		for {
			n, ok := s[0].Stream(buf)
			p.mu.Lock()
			p.frames += n
			p.mu.Unlock()
			if !ok {
				return
			}
		}
	}()
	return nil
}

func (p *drainPlayer) Resample(from beep.SampleRate, s beep.Streamer) beep.Streamer {
	return s
}

func (p *drainPlayer) rendered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func pcmSpeech(samples int) Speech {
	return Speech{
		Data:       audio.EncodeFloat32ToBase64PCM16(make([]float32, samples)),
		Format:     FormatPCM,
		SampleRate: 24000,
	}
}

func TestDecodeSpeech_PCM(t *testing.T) {
	stream, format, err := decodeSpeech(pcmSpeech(2400))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer stream.Close()

	if format.SampleRate != 24000 || format.NumChannels != 1 {
		t.Errorf("Expected 24kHz mono, got %+v", format)
	}
	if stream.Len() != 2400 {
		t.Errorf("Expected 2400 frames, got %d", stream.Len())
	}
}

func TestDecodeSpeech_WAV(t *testing.T) {
	wavData, err := audio.PCMToWAV(pcmSpeech(100).Data, 16000)
	if err != nil {
		t.Fatal(err)
	}

	stream, format, err := decodeSpeech(Speech{Data: wavData, Format: FormatWAV})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer stream.Close()
	if format.SampleRate != 16000 {
		t.Errorf("Expected 16kHz from header, got %d", format.SampleRate)
	}
}

func TestDecodeSpeech_Errors(t *testing.T) {
	tests := []Speech{
		{Data: "!!!", Format: FormatPCM},
		{Data: "AAAA", Format: "ogg"},
		{Data: "AAAA", Format: FormatWAV},
	}
	for _, speech := range tests {
		if _, _, err := decodeSpeech(speech); !errors.Is(err, ErrPlayback) {
			t.Errorf("%+v: expected ErrPlayback, got %v", speech, err)
		}
	}
}

func TestSpeakerSink_PlaysToEnd(t *testing.T) {
	player := &drainPlayer{}
	sink := NewSpeakerSink(player)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Play(ctx, pcmSpeech(2400)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for player.rendered() < 2400 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := player.rendered(); got != 2400 {
		t.Errorf("Expected 2400 frames rendered, got %d", got)
	}
}

func TestSpeakerSink_Halt(t *testing.T) {
	player := &drainPlayer{hold: true}
	sink := NewSpeakerSink(player)

	done := make(chan error, 1)
	go func() { done <- sink.Play(context.Background(), pcmSpeech(24000)) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sink.mu.Lock()
		current := sink.current
		sink.mu.Unlock()
		if current != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Playback never started")
		}
		time.Sleep(time.Millisecond)
	}

	sink.Halt()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected halt to end playback cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after halt")
	}

	// The halted streamer reports end of stream on the next pull
	buf := make([][2]float64, 16)
	if _, ok := player.held[0].Stream(buf); ok {
		t.Error("Expected halted streamer to end")
	}
}

func TestSpeakerSink_ContextCancel(t *testing.T) {
	sink := NewSpeakerSink(&drainPlayer{hold: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Play(ctx, pcmSpeech(100)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// gatedStreamer blocks inside Stream until release is closed and records
// pulls that arrive after closed is set.
type gatedStreamer struct {
	entered   chan struct{}
	release   chan struct{}
	mu        sync.Mutex
	closed    bool
	lateCalls int
	once      sync.Once
}

func (g *gatedStreamer) Stream(samples [][2]float64) (int, bool) {
	g.mu.Lock()
	if g.closed {
		g.lateCalls++
	}
	g.mu.Unlock()

	g.once.Do(func() { close(g.entered) })
	<-g.release
	return len(samples), true
}

func (g *gatedStreamer) Err() error { return nil }

func (g *gatedStreamer) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func TestHaltable_HaltWaitsForPull(t *testing.T) {
	inner := &gatedStreamer{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHaltable(inner)

	go h.Stream(make([][2]float64, 16))
	<-inner.entered

	halted := make(chan struct{})
	go func() {
		h.halt()
		inner.close()
		close(halted)
	}()

	select {
	case <-halted:
		t.Fatal("Expected halt to wait for the in-flight pull")
	case <-time.After(20 * time.Millisecond):
	}

	close(inner.release)
	select {
	case <-halted:
	case <-time.After(2 * time.Second):
		t.Fatal("halt did not return after the pull finished")
	}

	if n, ok := h.Stream(make([][2]float64, 16)); ok || n != 0 {
		t.Errorf("Expected halted stream to end, got n=%d ok=%v", n, ok)
	}
	inner.mu.Lock()
	defer inner.mu.Unlock()
	if inner.lateCalls != 0 {
		t.Errorf("Expected no pulls after close, got %d", inner.lateCalls)
	}
}
