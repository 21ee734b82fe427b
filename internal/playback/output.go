package playback

import (
	"math"
	"sync"

	"github.com/faiface/beep"

	"github.com/lexiqai/live-tutor/internal/speaker"
)

// Source is one scheduled unit of audio.
type Source interface {
	// Stop silences the source immediately, whether or not it has started.
	Stop()
}

// Output is an audio sink with its own clock.
type Output interface {
	// Now returns the output clock in seconds.
	Now() float64
	// Schedule plays samples starting at clock time at.
	Schedule(samples []float32, at float64) (Source, error)
	// Close halts everything and detaches the output.
	Close() error
}

// OutputFactory opens an Output running at sampleRate.
type OutputFactory func(sampleRate int) (Output, error)

// SpeakerOutputs returns a factory that attaches a mixer to dev for every
// output it opens.
func SpeakerOutputs(dev *speaker.Device) OutputFactory {
	return func(sampleRate int) (Output, error) {
		m := newMixer(sampleRate)
		if err := dev.Play(dev.Resample(beep.SampleRate(sampleRate), m)); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// mixer is a beep.Streamer that sums scheduled sources. The number of frames
// it has rendered is its clock, so scheduling follows the device and not the
// wall clock.
type mixer struct {
	rate float64

	mu       sync.Mutex
	position int64
	sources  []*mixerSource
	closed   bool
}

type mixerSource struct {
	m       *mixer
	start   int64
	samples []float32
	stopped bool
}

func newMixer(sampleRate int) *mixer {
	return &mixer{rate: float64(sampleRate)}
}

func (m *mixer) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.position) / m.rate
}

func (m *mixer) Schedule(samples []float32, at float64) (Source, error) {
	src := &mixerSource{
		m:       m,
		start:   int64(math.Round(at * m.rate)),
		samples: samples,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		src.stopped = true
		return src, nil
	}
	m.sources = append(m.sources, src)
	return src, nil
}

// Stream renders the next len(out) frames. It runs on the speaker goroutine.
func (m *mixer) Stream(out [][2]float64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, false
	}

	for i := range out {
		out[i] = [2]float64{}
	}

	begin := m.position
	end := begin + int64(len(out))
	live := m.sources[:0]
	for _, src := range m.sources {
		if src.stopped {
			continue
		}
		srcEnd := src.start + int64(len(src.samples))
		from := max(begin, src.start)
		to := min(end, srcEnd)
		for f := from; f < to; f++ {
			v := float64(src.samples[f-src.start])
			out[f-begin][0] += v
			out[f-begin][1] += v
		}
		if srcEnd > end {
			live = append(live, src)
		}
	}
	for i := len(live); i < len(m.sources); i++ {
		m.sources[i] = nil
	}
	m.sources = live
	m.position = end

	return len(out), true
}

func (m *mixer) Err() error {
	return nil
}

func (m *mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, src := range m.sources {
		src.stopped = true
	}
	m.sources = nil
	return nil
}

func (s *mixerSource) Stop() {
	s.m.mu.Lock()
	s.stopped = true
	s.m.mu.Unlock()
}
