// Package stt streams microphone audio to a speech-to-text service for
// turn-based listening.
package stt

import "errors"

// ErrNotListening is returned by SendAudio while no stream is open.
var ErrNotListening = errors.New("listener is not active")

// Transcript is a transcription result from the listener
type Transcript struct {
	// Text is the transcribed text
	Text string

	// IsFinal marks the last result for this stretch of audio
	IsFinal bool

	// SpeechFinal marks the end of an utterance (endpointing detected silence)
	SpeechFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// Listener is the interface for streaming speech-to-text clients
type Listener interface {
	// Start opens a transcription stream
	Start() error

	// SendAudio sends 16-bit little-endian mono PCM
	SendAudio(pcm []byte) error

	// Transcripts delivers results until Close
	Transcripts() <-chan *Transcript

	// Stop closes the current stream; Start may be called again
	Stop() error

	// Close stops the listener for good
	Close() error
}
