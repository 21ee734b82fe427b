package tutor

import (
	"context"
	"strings"

	"github.com/lexiqai/live-tutor/internal/segment"
)

// TextQueue accepts sentences for speech. *tts.Queue implements it.
type TextQueue interface {
	QueueText(text string) bool
}

// Turn streams one tutor reply and hands each complete sentence to the
// speech queue as soon as it arrives.
type Turn struct {
	Completer Completer
	Queue     TextQueue
	// OnDelta, when set, receives every text delta as it streams.
	OnDelta func(delta string)
}

// Run completes one reply to history and returns the full reply text. On a
// stream error the text received so far is still flushed to the queue and
// returned alongside the error.
func (t *Turn) Run(ctx context.Context, history []Message, profile Profile, memories []Memory) (string, error) {
	var (
		full      strings.Builder
		lastIndex int
		streamErr error
	)

	for delta, err := range t.Completer.Stream(ctx, history, profile, memories) {
		if err != nil {
			streamErr = err
			break
		}
		full.WriteString(delta)
		if t.OnDelta != nil {
			t.OnDelta(delta)
		}

		res := segment.ExtractSentences(full.String(), lastIndex, false)
		t.queue(res.Sentences)
		lastIndex = res.NewIndex
	}

	if streamErr == nil || ctx.Err() == nil {
		res := segment.ExtractSentences(full.String(), lastIndex, true)
		t.queue(res.Sentences)
	}
	return full.String(), streamErr
}

func (t *Turn) queue(sentences []string) {
	if t.Queue == nil {
		return
	}
	for _, s := range sentences {
		t.Queue.QueueText(s)
	}
}
