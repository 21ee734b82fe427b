// Package speaker owns the process-wide audio output device.
//
// beep's speaker package drives a single hardware stream, so live playback and
// turn-based speech share one Device and mix their streamers on it.
package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/observability"
)

// Device is a lazily initialized handle on the system speaker.
type Device struct {
	rate   beep.SampleRate
	buffer time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	ready   bool
	initErr error
}

// NewDevice creates a device that will open the speaker at sampleRate with
// the given buffer length. Nothing is opened until the first Play.
func NewDevice(sampleRate int, buffer time.Duration) *Device {
	if buffer <= 0 {
		buffer = 50 * time.Millisecond
	}
	return &Device{
		rate:   beep.SampleRate(sampleRate),
		buffer: buffer,
		logger: observability.WithComponent("speaker"),
	}
}

// SampleRate returns the rate the device mixes at.
func (d *Device) SampleRate() beep.SampleRate {
	return d.rate
}

func (d *Device) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ready {
		return nil
	}
	if d.initErr != nil {
		return d.initErr
	}

	if err := speaker.Init(d.rate, d.rate.N(d.buffer)); err != nil {
		d.initErr = fmt.Errorf("failed to initialize speaker: %w", err)
		observability.RecordError("init", "speaker")
		return d.initErr
	}

	d.ready = true
	d.logger.Info().
		Int("sample_rate", int(d.rate)).
		Dur("buffer", d.buffer).
		Msg("Speaker initialized")
	return nil
}

// Play adds streamers to the speaker mix. Streamers at another sample rate
// must be wrapped with Resample first.
func (d *Device) Play(s ...beep.Streamer) error {
	if err := d.init(); err != nil {
		return err
	}
	speaker.Play(s...)
	return nil
}

// Resample converts s from rate `from` to the device rate.
func (d *Device) Resample(from beep.SampleRate, s beep.Streamer) beep.Streamer {
	if from == d.rate {
		return s
	}
	return beep.Resample(4, from, d.rate, s)
}

// Clear removes every streamer from the mix.
func (d *Device) Clear() {
	d.mu.Lock()
	ready := d.ready
	d.mu.Unlock()
	if ready {
		speaker.Clear()
	}
}

// Close releases the speaker.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return
	}
	speaker.Close()
	d.ready = false
	d.logger.Debug().Msg("Speaker closed")
}
