package capture

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/observability"
)

// ErrAlreadyStarted is returned by Start on a running engine.
var ErrAlreadyStarted = errors.New("capture already started")

// FrameFunc receives one base64 encoded 16-bit PCM frame.
type FrameFunc func(base64PCM string)

// Config configures an Engine.
type Config struct {
	SampleRate int // Rate of emitted frames
	BlockSize  int // Samples per emitted frame
}

// DefaultConfig returns 16 kHz frames of 4096 samples.
func DefaultConfig() Config {
	return Config{
		SampleRate: audio.DefaultCaptureRate,
		BlockSize:  4096,
	}
}

// Engine owns one microphone stream and chops it into fixed-size frames.
type Engine struct {
	strategy Strategy
	cfg      Config
	logger   zerolog.Logger

	mu      sync.Mutex
	stream  Stream
	buffer  *audio.FrameBuffer
	onFrame FrameFunc
	gen     uint64
}

// NewEngine creates an engine that opens devices through strategy.
func NewEngine(strategy Strategy, cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultCaptureRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 4096
	}
	return &Engine{
		strategy: strategy,
		cfg:      cfg,
		logger:   observability.WithComponent("capture").With().Str("strategy", strategy.Name()).Logger(),
	}
}

// Start opens the microphone and calls onFrame for every full block.
// onFrame runs on the audio thread. Errors that need user action wrap
// ErrPermissionDenied.
func (e *Engine) Start(onFrame FrameFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		return ErrAlreadyStarted
	}

	// Every start gets fresh state. Callbacks from an older generation are
	// dropped.
	e.gen++
	gen := e.gen
	e.buffer = audio.NewFrameBuffer(e.cfg.BlockSize)
	e.onFrame = onFrame

	stream, err := e.strategy.Open(DeviceConfig{
		SampleRate:      e.cfg.SampleRate,
		FramesPerBuffer: e.cfg.BlockSize,
	}, func(samples []float32, rate int) {
		e.handleSamples(gen, samples, rate)
	})
	if err != nil {
		e.gen++
		e.buffer = nil
		e.onFrame = nil
		err = classifyOpenError(err)
		if errors.Is(err, ErrPermissionDenied) {
			observability.RecordError("permission_denied", "capture")
		} else {
			observability.RecordError("open", "capture")
		}
		e.logger.Error().Err(err).Msg("Failed to start capture")
		return err
	}

	e.stream = stream
	e.logger.Info().
		Int("sample_rate", e.cfg.SampleRate).
		Int("block_size", e.cfg.BlockSize).
		Msg("Capture started")
	return nil
}

func (e *Engine) handleSamples(gen uint64, samples []float32, rate int) {
	e.mu.Lock()
	if gen != e.gen || e.buffer == nil {
		e.mu.Unlock()
		return
	}
	buffer := e.buffer
	onFrame := e.onFrame
	target := e.cfg.SampleRate
	e.mu.Unlock()

	if rate != target {
		samples = audio.Resample(samples, rate, target)
	}

	buffer.Write(samples, func(block []float32) {
		onFrame(audio.EncodeFloat32ToBase64PCM16(block))
	})
}

// Stop closes the device and drops any partial block. Safe to call more than
// once and before Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.gen++
	e.buffer = nil
	e.onFrame = nil
	e.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("Error closing capture device")
	}
	e.logger.Info().Msg("Capture stopped")
}

// Running reports whether a device is open.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream != nil
}
