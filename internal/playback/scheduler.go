// Package playback schedules streamed PCM chunks back to back on an output
// clock and flushes them on interruption.
package playback

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/observability"
)

type scheduled struct {
	src Source
	end float64
}

// Scheduler owns the playback timeline. All timeline state is mutated
// through its methods.
type Scheduler struct {
	sampleRate int
	newOutput  OutputFactory
	logger     zerolog.Logger

	mu            sync.Mutex
	output        Output
	nextStartTime float64
	activeSources []scheduled
}

// NewScheduler creates a scheduler for chunks at sampleRate. The output is
// opened on the first PlayChunk.
func NewScheduler(sampleRate int, factory OutputFactory) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultPlaybackRate
	}
	return &Scheduler{
		sampleRate: sampleRate,
		newOutput:  factory,
		logger:     observability.WithComponent("playback"),
	}
}

// PlayChunk decodes a base64 PCM chunk and schedules it right after the
// previous one. Failures are logged and the chunk is dropped.
func (s *Scheduler) PlayChunk(base64Data string) {
	samples, err := audio.DecodeBase64PCM16(base64Data)
	if err != nil {
		s.logger.Warn().Err(err).Int("length", len(base64Data)).Msg("Dropping undecodable chunk")
		observability.RecordChunk(false)
		return
	}
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.output == nil {
		out, err := s.newOutput(s.sampleRate)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to open audio output")
			observability.RecordError("output", "playback")
			observability.RecordChunk(false)
			return
		}
		s.output = out
	}

	now := s.output.Now()
	start := max(now, s.nextStartTime)

	src, err := s.output.Schedule(samples, start)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to schedule chunk")
		observability.RecordChunk(false)
		return
	}

	end := start + audio.Duration(len(samples), s.sampleRate)
	s.nextStartTime = end
	s.activeSources = append(pruneEnded(s.activeSources, now), scheduled{src: src, end: end})
	observability.RecordChunk(true)
}

// Stop halts every scheduled source, releases the output and resets the
// timeline. Repeated calls are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.output == nil && len(s.activeSources) == 0 {
		return
	}

	for _, a := range s.activeSources {
		a.src.Stop()
	}
	s.activeSources = nil

	if s.output != nil {
		if err := s.output.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing audio output")
		}
		s.output = nil
	}
	s.nextStartTime = 0
	s.logger.Debug().Msg("Playback stopped")
}

// IsPlaying reports whether scheduled audio has not finished yet.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output != nil && s.nextStartTime > s.output.Now()
}

// NextStartTime returns where the next chunk would start on the output clock.
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}

// ActiveSources returns the number of sources that may still be sounding.
func (s *Scheduler) ActiveSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeSources)
}

func pruneEnded(sources []scheduled, now float64) []scheduled {
	live := sources[:0]
	for _, a := range sources {
		if a.end > now {
			live = append(live, a)
		}
	}
	return live
}
