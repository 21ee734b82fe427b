package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/capture"
	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/conversation"
	"github.com/lexiqai/live-tutor/internal/live"
	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/playback"
	"github.com/lexiqai/live-tutor/internal/resilience"
	"github.com/lexiqai/live-tutor/internal/speaker"
	"github.com/lexiqai/live-tutor/internal/stt"
	"github.com/lexiqai/live-tutor/internal/transcript"
	"github.com/lexiqai/live-tutor/internal/tts"
	"github.com/lexiqai/live-tutor/internal/tutor"
)

// app is the fully wired tutor.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	device     *speaker.Device
	mic        *capture.Engine
	scheduler  *playback.Scheduler
	queue      *tts.Queue
	listener   stt.Listener
	printer    *transcript.Printer
	controller *conversation.Controller
	server     *http.Server

	liveClosed chan struct{}
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	a := &app{
		cfg:        cfg,
		logger:     observability.WithComponent("app"),
		printer:    transcript.NewPrinter(out),
		liveClosed: make(chan struct{}, 1),
	}

	profile, memories, err := tutor.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	strategy, err := capture.NewStrategy(cfg.CaptureStrategy)
	if err != nil {
		return nil, err
	}

	synth, err := newSynthesizer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	completer, err := tutor.NewCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.device = speaker.NewDevice(cfg.PlaybackSampleRate, time.Duration(cfg.PlaybackBufferMs)*time.Millisecond)
	a.scheduler = playback.NewScheduler(cfg.PlaybackSampleRate, playback.SpeakerOutputs(a.device))
	a.mic = capture.NewEngine(strategy, capture.Config{
		SampleRate: cfg.CaptureSampleRate,
		BlockSize:  cfg.CaptureBlockSize,
	})
	a.queue = tts.NewQueue(synth, tts.NewSpeakerSink(a.device))

	if cfg.ListenProvider == "deepgram" {
		a.listener = stt.NewDeepgramClient(cfg)
	}

	a.controller = conversation.NewController(conversation.Deps{
		Transport: live.NewGeminiTransport(cfg),
		Mic:       a.mic,
		Player:    a.scheduler,
		Speech:    a.queue,
		Completer: completer,
		Listener:  a.listener,
		SessionOptions: []live.Option{
			live.WithCircuitBreaker(newBreaker("live", cfg)),
			live.WithRetry(newRetryConfig(cfg)),
		},
	}, conversation.Config{
		Profile:      profile,
		Memories:     memories,
		LocalBargeIn: cfg.LocalBargeIn,
		VAD: &audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
			SpeechFrames:    1,
		},
		ListenDelay: cfg.TurnListenDelay(),
		ResumeDelay: cfg.TurnResumeDelay(),
	}, conversation.Events{
		OnTranscript: a.printer.Transcript,
		OnDelta:      a.printer.Delta,
		OnError:      a.printer.Error,
		OnLiveClosed: func() {
			select {
			case a.liveClosed <- struct{}{}:
			default:
			}
		},
	})

	if cfg.MetricsEnabled {
		a.server = startHealthServer(cfg, readinessChecks(cfg))
	}

	a.logger.Info().
		Str("learner", profile.Name).
		Str("target_lang", profile.TargetLang).
		Int("memories", len(memories)).
		Msg("Tutor ready")
	return a, nil
}

// newSynthesizer returns the TTS provider selected by TTS_PROVIDER with
// retries and a circuit breaker around it.
func newSynthesizer(ctx context.Context, cfg *config.Config) (tts.Synthesizer, error) {
	var synth tts.Synthesizer
	switch cfg.TTSProvider {
	case "", "gemini":
		g, err := tts.NewGeminiSynthesizer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		synth = g
	case "cartesia":
		synth = tts.NewCartesiaSynthesizer(cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
	return tts.NewResilientSynthesizer(synth, newBreaker("tts-"+cfg.TTSProvider, cfg), newRetryConfig(cfg)), nil
}

func newBreaker(name string, cfg *config.Config) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerTimeout())
	logger := observability.WithComponent("resilience")
	cb.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		logger.Warn().
			Str("breaker", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("Circuit breaker state changed")
	})
	return cb
}

func newRetryConfig(cfg *config.Config) *resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	}
	return retry
}

// Close stops every mode and releases the audio devices.
func (a *app) Close() {
	a.controller.Close()
	a.queue.Close()
	a.printer.EndTurn()
	if a.listener != nil {
		if err := a.listener.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close listener")
		}
	}
	a.device.Close()

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Health server shutdown failed")
		}
	}
}
