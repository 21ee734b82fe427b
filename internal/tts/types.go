package tts

import (
	"context"
	"errors"
)

// Audio container formats a Speech can carry.
const (
	FormatPCM = "pcm" // Raw 16-bit little-endian mono PCM
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

var (
	// ErrSynthesis wraps failed synthesis calls.
	ErrSynthesis = errors.New("speech synthesis failed")

	// ErrPlayback wraps failures to decode or play a Speech.
	ErrPlayback = errors.New("speech playback failed")
)

// Speech is synthesized audio ready for a Sink.
type Speech struct {
	Data       string // Base64 audio
	Format     string // FormatPCM, FormatWAV or FormatMP3
	SampleRate int    // PCM only; zero means 24 kHz
}

// Synthesizer turns text into speech. A nil Speech with a nil error means
// there is nothing to say for this text and the item is skipped.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// Sink plays speech one item at a time.
type Sink interface {
	// Play blocks until the speech ends naturally, fails, is halted or ctx
	// is done.
	Play(ctx context.Context, speech Speech) error
	// Halt stops whatever Play is currently playing.
	Halt()
}
