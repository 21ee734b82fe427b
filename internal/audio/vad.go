package audio

import "sync"

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive silent frames before speech ends
	SpeechFrames    int     // Consecutive loud frames before speech starts
}

// DefaultVADConfig returns thresholds tuned for 4096-sample capture blocks
// at 16kHz (256ms per frame).
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   3,
		SpeechFrames:    1,
	}
}

// VADDetector performs energy based Voice Activity Detection
type VADDetector struct {
	mu             sync.Mutex
	config         *VADConfig
	silenceCounter int
	speechCounter  int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	if config.SpeechFrames < 1 {
		config.SpeechFrames = 1
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		v.speechCounter++

		if !v.isSpeaking && v.speechCounter >= v.config.SpeechFrames {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.speechCounter = 0
		v.silenceCounter++

		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silenceCounter = 0
	v.speechCounter = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isSpeaking
}
