package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/observability"
)

const maxConsecutiveReadErrors = 10

// BlockingStrategy captures through PortAudio's blocking read API on a
// dedicated goroutine.
type BlockingStrategy struct{}

// Name returns the strategy name.
func (s *BlockingStrategy) Name() string {
	return "blocking"
}

// Open starts an input-only stream. If the device refuses the requested
// rate the stream is opened at the device default and samples are delivered
// at that rate.
func (s *BlockingStrategy) Open(cfg DeviceConfig, onSamples SampleFunc) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	buf := make([]float32, frames)

	rate := cfg.SampleRate
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), frames, buf)
	if err != nil {
		device, derr := portaudio.DefaultInputDevice()
		if derr != nil {
			portaudio.Terminate()
			return nil, fmt.Errorf("no input device: %w", derr)
		}
		rate = int(device.DefaultSampleRate)
		stream, err = portaudio.OpenDefaultStream(1, 0, device.DefaultSampleRate, frames, buf)
		if err != nil {
			portaudio.Terminate()
			return nil, fmt.Errorf("failed to open input stream: %w", err)
		}
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	bs := &blockingStream{
		stream: stream,
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: observability.WithComponent("capture").With().Str("strategy", "blocking").Logger(),
	}
	go bs.readLoop(buf, rate, onSamples)
	return bs, nil
}

type blockingStream struct {
	stream *portaudio.Stream
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func (s *blockingStream) readLoop(buf []float32, rate int, onSamples SampleFunc) {
	defer close(s.done)

	failures := 0
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			failures++
			s.logger.Warn().Err(err).Int("consecutive", failures).Msg("Audio read error")
			if failures >= maxConsecutiveReadErrors {
				observability.RecordError("read", "capture")
				return
			}
			continue
		}
		failures = 0

		samples := make([]float32, len(buf))
		copy(samples, buf)
		onSamples(samples, rate)
	}
}

func (s *blockingStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.stream.Stop()
		<-s.done
		if cerr := s.stream.Close(); err == nil {
			err = cerr
		}
		if terr := portaudio.Terminate(); err == nil {
			err = terr
		}
	})
	return err
}
