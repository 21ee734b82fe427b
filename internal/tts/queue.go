// Package tts synthesizes tutor replies sentence by sentence and plays them
// in order.
package tts

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/segment"
)

// ErrQueueClosed is returned by SpeakImmediate after Close.
var ErrQueueClosed = errors.New("speech queue closed")

type textItem struct {
	text string
	done chan error // SpeakImmediate only
}

// Queue runs two pipelines: text to speech, and speech to the sink. Each
// pipeline has at most one operation in flight; the two run concurrently so
// item N+1 can be synthesized while item N plays.
type Queue struct {
	synth  Synthesizer
	sink   Sink
	logger zerolog.Logger

	mu             sync.Mutex
	texts          []textItem
	speeches       []Speech
	isSynthesizing bool
	isPlaying      bool
	epoch          uint64
	ctx            context.Context
	cancel         context.CancelFunc
	changed        chan struct{}
	closed         bool
}

// NewQueue creates a queue that synthesizes with synth and plays on sink.
func NewQueue(synth Synthesizer, sink Sink) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		synth:   synth,
		sink:    sink,
		logger:  observability.WithComponent("tts-queue").With().Str("queue_id", uuid.New().String()).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		changed: make(chan struct{}),
	}
}

// QueueText appends text to the synthesis queue. Text with no letters or
// digits is dropped; QueueText reports whether the text was queued.
func (q *Queue) QueueText(text string) bool {
	if segment.IsJunk(text) {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.texts = append(q.texts, textItem{text: text})
	q.startSynthesisLocked()
	return true
}

// SpeakImmediate drops everything queued, halts current playback and speaks
// text next. It returns once the speech has been handed to the playback
// pipeline, or with the synthesis error.
func (q *Queue) SpeakImmediate(ctx context.Context, text string) error {
	q.Stop()
	if segment.IsJunk(text) {
		return nil
	}

	done := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.texts = append([]textItem{{text: text, done: done}}, q.texts...)
	q.startSynthesisLocked()
	q.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop clears both queues, halts current playback and cancels the in-flight
// synthesis. Results that arrive after Stop are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.epoch++
	q.cancel()
	q.ctx, q.cancel = context.WithCancel(context.Background())
	dropped := q.clearLocked()
	playing := q.isPlaying
	q.mu.Unlock()

	if playing {
		q.sink.Halt()
	}
	if dropped > 0 || playing {
		q.logger.Debug().Int("dropped", dropped).Bool("halted", playing).Msg("Speech queue stopped")
	}
}

// ClearQueue drops pending items and lets the current playback finish.
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	dropped := q.clearLocked()
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Debug().Int("dropped", dropped).Msg("Speech queue cleared")
	}
}

// Close stops the queue for good.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Stop()
}

// IsSpeaking reports whether an item is playing.
func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isPlaying
}

// IsSynthesizing reports whether a synthesis call is in flight.
func (q *Queue) IsSynthesizing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isSynthesizing
}

// Pending returns the number of queued texts and speeches.
func (q *Queue) Pending() (texts, speeches int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.texts), len(q.speeches)
}

// WaitIdle blocks until nothing is queued or in flight.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.idleLocked() {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) idleLocked() bool {
	return !q.isSynthesizing && !q.isPlaying && len(q.texts) == 0 && len(q.speeches) == 0
}

func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) clearLocked() int {
	dropped := len(q.texts) + len(q.speeches)
	for _, item := range q.texts {
		if item.done != nil {
			item.done <- context.Canceled
		}
	}
	q.texts = nil
	q.speeches = nil
	return dropped
}

func (q *Queue) startSynthesisLocked() {
	if q.isSynthesizing {
		return
	}
	q.isSynthesizing = true
	go q.synthesisLoop()
}

func (q *Queue) startPlaybackLocked() {
	if q.isPlaying {
		return
	}
	q.isPlaying = true
	go q.playbackLoop()
}

func (q *Queue) synthesisLoop() {
	for {
		q.mu.Lock()
		if len(q.texts) == 0 {
			q.isSynthesizing = false
			q.notifyLocked()
			q.mu.Unlock()
			return
		}
		item := q.texts[0]
		q.texts = q.texts[1:]
		epoch := q.epoch
		ctx := q.ctx
		q.mu.Unlock()

		speech, err := q.synth.Synthesize(ctx, item.text)

		q.mu.Lock()
		stale := epoch != q.epoch
		switch {
		case stale:
			err = context.Canceled
		case err != nil:
			q.logger.Warn().Err(err).Str("text", item.text).Msg("Synthesis failed, skipping")
		case speech == nil:
			q.logger.Debug().Str("text", item.text).Msg("No audio for text, skipping")
		default:
			if item.done != nil {
				// Immediate speech jumps ahead of anything queued meanwhile
				q.speeches = append([]Speech{*speech}, q.speeches...)
			} else {
				q.speeches = append(q.speeches, *speech)
			}
			q.startPlaybackLocked()
		}
		q.mu.Unlock()

		if item.done != nil {
			item.done <- err
		}
	}
}

func (q *Queue) playbackLoop() {
	for {
		q.mu.Lock()
		if len(q.speeches) == 0 {
			q.isPlaying = false
			q.notifyLocked()
			q.mu.Unlock()
			return
		}
		speech := q.speeches[0]
		q.speeches = q.speeches[1:]
		epoch := q.epoch
		ctx := q.ctx
		q.mu.Unlock()

		err := q.sink.Play(ctx, speech)

		q.mu.Lock()
		halted := epoch != q.epoch
		q.mu.Unlock()

		switch {
		case halted:
			observability.RecordPlayback("halted")
		case err != nil:
			q.logger.Warn().Err(err).Str("format", speech.Format).Msg("Playback failed, moving on")
			observability.RecordPlayback("failed")
		default:
			observability.RecordPlayback("played")
		}
	}
}
