package capture

import (
	"errors"
	"sync"
	"testing"

	"github.com/lexiqai/live-tutor/internal/audio"
)

type fakeStream struct {
	closed int
}

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

type fakeStrategy struct {
	mu        sync.Mutex
	openErr   error
	onSamples SampleFunc
	streams   []*fakeStream
	lastCfg   DeviceConfig
}

func (f *fakeStrategy) Name() string { return "fake" }

func (f *fakeStrategy) Open(cfg DeviceConfig, onSamples SampleFunc) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.lastCfg = cfg
	f.onSamples = onSamples
	s := &fakeStream{}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeStrategy) push(samples []float32, rate int) {
	f.mu.Lock()
	fn := f.onSamples
	f.mu.Unlock()
	fn(samples, rate)
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *frameRecorder) onFrame(b64 string) {
	r.mu.Lock()
	r.frames = append(r.frames, b64)
	r.mu.Unlock()
}

func (r *frameRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestEngine_EmitsFixedSizeFrames(t *testing.T) {
	strategy := &fakeStrategy{}
	engine := NewEngine(strategy, Config{SampleRate: 16000, BlockSize: 4})
	rec := &frameRecorder{}

	if err := engine.Start(rec.onFrame); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strategy.lastCfg.SampleRate != 16000 || strategy.lastCfg.FramesPerBuffer != 4 {
		t.Errorf("Unexpected device config: %+v", strategy.lastCfg)
	}

	strategy.push([]float32{0.1, 0.2, 0.3}, 16000)
	if rec.count() != 0 {
		t.Errorf("Expected no frame before a full block, got %d", rec.count())
	}

	strategy.push([]float32{0.4, 0.5, 0.6, 0.7, 0.8, 0.9}, 16000)
	if rec.count() != 2 {
		t.Fatalf("Expected 2 frames, got %d", rec.count())
	}

	samples, err := audio.DecodeBase64PCM16(rec.frames[0])
	if err != nil {
		t.Fatalf("Expected decodable frame, got %v", err)
	}
	if len(samples) != 4 {
		t.Errorf("Expected 4 samples per frame, got %d", len(samples))
	}
	if samples[0] < 0.09 || samples[0] > 0.11 {
		t.Errorf("Expected first sample ~0.1, got %f", samples[0])
	}
}

func TestEngine_ResamplesDeviceRate(t *testing.T) {
	strategy := &fakeStrategy{}
	engine := NewEngine(strategy, Config{SampleRate: 16000, BlockSize: 160})
	rec := &frameRecorder{}

	if err := engine.Start(rec.onFrame); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// 480 samples at 48 kHz become 160 samples at 16 kHz
	strategy.push(make([]float32, 480), 48000)
	if rec.count() != 1 {
		t.Errorf("Expected 1 frame after resampling, got %d", rec.count())
	}
}

func TestEngine_PermissionDenied(t *testing.T) {
	strategy := &fakeStrategy{openErr: errors.New("NotAllowedError: Permission denied")}
	engine := NewEngine(strategy, DefaultConfig())

	err := engine.Start(func(string) {})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if engine.Running() {
		t.Error("Expected engine not to be running")
	}
}

func TestEngine_NoDeviceIsPermissionDenied(t *testing.T) {
	strategy := &fakeStrategy{openErr: errors.New("no input device: device not found")}
	engine := NewEngine(strategy, DefaultConfig())

	if err := engine.Start(func(string) {}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestEngine_GenericFailureIsNotPermissionDenied(t *testing.T) {
	strategy := &fakeStrategy{openErr: errors.New("device busy")}
	engine := NewEngine(strategy, DefaultConfig())

	err := engine.Start(func(string) {})
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected generic failure, got %v", err)
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	strategy := &fakeStrategy{}
	engine := NewEngine(strategy, DefaultConfig())

	// Before start
	engine.Stop()

	if err := engine.Start(func(string) {}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	engine.Stop()
	engine.Stop()

	if strategy.streams[0].closed != 1 {
		t.Errorf("Expected stream closed once, got %d", strategy.streams[0].closed)
	}
}

func TestEngine_StartTwice(t *testing.T) {
	engine := NewEngine(&fakeStrategy{}, DefaultConfig())
	if err := engine.Start(func(string) {}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer engine.Stop()

	if err := engine.Start(func(string) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestEngine_RestartUsesFreshState(t *testing.T) {
	strategy := &fakeStrategy{}
	engine := NewEngine(strategy, Config{SampleRate: 16000, BlockSize: 4})

	first := &frameRecorder{}
	if err := engine.Start(first.onFrame); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	staleCallback := strategy.onSamples
	strategy.push([]float32{0.1, 0.1, 0.1}, 16000)
	engine.Stop()

	second := &frameRecorder{}
	if err := engine.Start(second.onFrame); err != nil {
		t.Fatalf("Expected no error on restart, got %v", err)
	}

	// A late callback from the first device is ignored
	staleCallback([]float32{0.2, 0.2, 0.2, 0.2}, 16000)
	if first.count() != 0 || second.count() != 0 {
		t.Errorf("Expected stale samples to be dropped, got %d and %d frames", first.count(), second.count())
	}

	// The partial block from the first run is gone
	strategy.push([]float32{0.3}, 16000)
	if second.count() != 0 {
		t.Errorf("Expected no frame from leftover samples, got %d", second.count())
	}
	strategy.push([]float32{0.3, 0.3, 0.3}, 16000)
	if second.count() != 1 {
		t.Errorf("Expected 1 frame, got %d", second.count())
	}
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("blocking")
	if err != nil || s.Name() != "blocking" {
		t.Errorf("Expected blocking strategy, got %v, %v", s, err)
	}
	s, err = NewStrategy("")
	if err != nil || s.Name() != "callback" {
		t.Errorf("Expected callback strategy by default, got %v, %v", s, err)
	}
	if _, err := NewStrategy("worklet"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}
