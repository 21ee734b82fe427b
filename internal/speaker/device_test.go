package speaker

import (
	"testing"
	"time"

	"github.com/faiface/beep"
)

func TestNewDevice_DefaultBuffer(t *testing.T) {
	d := NewDevice(24000, 0)
	if d.buffer != 50*time.Millisecond {
		t.Errorf("Expected 50ms buffer, got %v", d.buffer)
	}
	if d.SampleRate() != beep.SampleRate(24000) {
		t.Errorf("Expected 24000, got %d", d.SampleRate())
	}
}

type countingStreamer struct{ n int }

func (c *countingStreamer) Stream(samples [][2]float64) (int, bool) {
	c.n += len(samples)
	return len(samples), true
}

func (c *countingStreamer) Err() error { return nil }

func TestDevice_ResampleSameRate(t *testing.T) {
	d := NewDevice(24000, 0)
	s := &countingStreamer{}
	if got := d.Resample(24000, s); got != beep.Streamer(s) {
		t.Error("Expected streamer to be returned unchanged at the device rate")
	}
	if got := d.Resample(16000, s); got == beep.Streamer(s) {
		t.Error("Expected a resampling wrapper for a different rate")
	}
}

func TestDevice_ClearAndCloseBeforeInit(t *testing.T) {
	d := NewDevice(24000, 0)
	d.Clear()
	d.Close()
}
