package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/lexiqai/live-tutor/internal/audio"
)

// CallbackStrategy captures through miniaudio. Samples are pushed from the
// driver's own audio thread.
type CallbackStrategy struct{}

// Name returns the strategy name.
func (s *CallbackStrategy) Name() string {
	return "callback"
}

// Open starts a capture-only device. miniaudio converts to the requested
// rate, so samples always arrive at cfg.SampleRate.
func (s *CallbackStrategy) Open(cfg DeviceConfig, onSamples SampleFunc) (Stream, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	if cfg.FramesPerBuffer > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	}

	rate := cfg.SampleRate
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) == 0 {
				return
			}
			onSamples(audio.Int16ToFloat32(audio.BytesToInt16(input)), rate)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext(ctx)
		return nil, fmt.Errorf("failed to init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	return &callbackStream{ctx: ctx, device: device}, nil
}

type callbackStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (s *callbackStream) Close() error {
	err := s.device.Stop()
	s.device.Uninit()
	releaseContext(s.ctx)
	return err
}

func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}
