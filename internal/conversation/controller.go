// Package conversation switches a tutoring client between live voice mode
// and turn-based replies, and keeps the shared conversation history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/capture"
	"github.com/lexiqai/live-tutor/internal/live"
	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/stt"
	"github.com/lexiqai/live-tutor/internal/tutor"
)

// ErrNoListener is returned by StartListening when no listener is configured.
var ErrNoListener = errors.New("no speech listener configured")

// Mode is what the controller is currently doing.
type Mode int

const (
	ModeIdle Mode = iota
	ModeLive
	ModeListening
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeListening:
		return "listening"
	default:
		return "idle"
	}
}

// Player plays live model audio. *playback.Scheduler implements it.
type Player interface {
	PlayChunk(base64PCM string)
	Stop()
	IsPlaying() bool
}

// SpeechQueue speaks turn-based replies. *tts.Queue implements it.
type SpeechQueue interface {
	QueueText(text string) bool
	SpeakImmediate(ctx context.Context, text string) error
	Stop()
	ClearQueue()
	WaitIdle(ctx context.Context) error
}

// Deps are the collaborators of a Controller. Listener may be nil.
type Deps struct {
	Transport      live.Transport
	Mic            live.Recorder
	Player         Player
	Speech         SpeechQueue
	Completer      tutor.Completer
	Listener       stt.Listener
	SessionOptions []live.Option
}

// Config tunes a Controller.
type Config struct {
	Profile      tutor.Profile
	Memories     []tutor.Memory
	LocalBargeIn bool
	VAD          *audio.VADConfig
	ListenDelay  time.Duration // final transcript to reply
	ResumeDelay  time.Duration // speech drained to listening again
}

// Events receive user-facing output. Any of them may be nil.
type Events struct {
	OnTranscript func(role string, text string)
	OnDelta      func(delta string)
	OnError      func(err error)
	OnLiveClosed func()
}

// Controller keeps live mode and turn-based speech mutually exclusive.
type Controller struct {
	deps    Deps
	cfg     Config
	events  Events
	session *live.Session
	vad     *audio.VADDetector
	logger  zerolog.Logger

	turnMu sync.Mutex // serializes turns

	// playMu is held while live audio reaches the player; liveGen changes
	// whenever live playback is torn down.
	playMu  sync.Mutex
	liveGen uint64

	mu           sync.Mutex
	mode         Mode
	history      []tutor.Message
	listenCancel context.CancelFunc
	listenDone   chan struct{}
}

// NewController wires deps into a controller. The live session records
// through a tap that feeds local barge-in detection.
func NewController(deps Deps, cfg Config, events Events) *Controller {
	c := &Controller{
		deps:   deps,
		cfg:    cfg,
		events: events,
		vad:    audio.NewVADDetector(cfg.VAD),
		logger: observability.WithComponent("conversation"),
	}
	c.session = live.NewSession(deps.Transport, &micTap{mic: deps.Mic, c: c}, deps.SessionOptions...)
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SessionState returns the live session state.
func (c *Controller) SessionState() live.State {
	return c.session.State()
}

// History returns a copy of the conversation so far.
func (c *Controller) History() []tutor.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tutor.Message(nil), c.history...)
}

// StartLive silences turn-based speech and opens a live session.
func (c *Controller) StartLive(ctx context.Context) error {
	c.StopListening()
	c.deps.Speech.ClearQueue()
	c.deps.Speech.Stop()
	c.vad.Reset()

	c.mu.Lock()
	c.mode = ModeLive
	c.mu.Unlock()

	c.playMu.Lock()
	c.liveGen++
	gen := c.liveGen
	c.playMu.Unlock()

	cfg := live.Config{SystemInstruction: tutor.BuildSystemInstruction(c.cfg.Profile, c.cfg.Memories)}
	err := c.session.Connect(ctx, cfg, live.Callbacks{
		OnAudioData: func(base64PCM string) {
			c.playLive(gen, base64PCM)
		},
		OnInterrupted: c.deps.Player.Stop,
		OnTranscription: func(text string, isFinal bool, role live.Role) {
			c.recordTranscript(string(role), text)
		},
		OnError: func(err error) {
			c.logger.Error().Err(err).Msg("Live session failed")
			c.liveEnded()
			c.emitError(err)
		},
		OnClose: c.liveEnded,
	})
	if err != nil {
		c.mu.Lock()
		if c.mode == ModeLive {
			c.mode = ModeIdle
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// StopLive closes the live session and silences its audio.
func (c *Controller) StopLive() {
	c.session.Disconnect()
	c.silenceLive()

	c.mu.Lock()
	if c.mode == ModeLive {
		c.mode = ModeIdle
	}
	c.mu.Unlock()
}

// playLive plays a live chunk unless live playback of gen has ended.
func (c *Controller) playLive(gen uint64, base64PCM string) {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if gen != c.liveGen {
		return
	}
	c.deps.Player.PlayChunk(base64PCM)
}

// silenceLive drops every live chunk still on its way and stops the player.
func (c *Controller) silenceLive() {
	c.playMu.Lock()
	c.liveGen++
	c.playMu.Unlock()
	c.deps.Player.Stop()
}

func (c *Controller) liveEnded() {
	c.silenceLive()

	c.mu.Lock()
	wasLive := c.mode == ModeLive
	if wasLive {
		c.mode = ModeIdle
	}
	c.mu.Unlock()

	if wasLive && c.events.OnLiveClosed != nil {
		c.events.OnLiveClosed()
	}
}

// Say sends userText to the tutor and speaks the reply sentence by sentence.
// An empty userText asks the tutor to continue or open the conversation.
func (c *Controller) Say(ctx context.Context, userText string) (string, error) {
	c.StopLive()
	return c.runTurn(ctx, userText)
}

// ReadAloud speaks text right away, cutting off anything in progress.
func (c *Controller) ReadAloud(ctx context.Context, text string) error {
	c.StopLive()
	return c.deps.Speech.SpeakImmediate(ctx, text)
}

// WaitSpoken blocks until queued speech has played.
func (c *Controller) WaitSpoken(ctx context.Context) error {
	return c.deps.Speech.WaitIdle(ctx)
}

func (c *Controller) runTurn(ctx context.Context, userText string) (string, error) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	c.deps.Speech.Stop()

	if userText != "" {
		c.appendHistory(tutor.RoleUser, userText, false)
	}
	history := c.History()

	turn := &tutor.Turn{
		Completer: c.deps.Completer,
		Queue:     c.deps.Speech,
		OnDelta:   c.events.OnDelta,
	}
	reply, err := turn.Run(ctx, history, c.cfg.Profile, c.cfg.Memories)
	if reply != "" {
		c.appendHistory(tutor.RoleModel, reply, false)
	}
	if err != nil {
		observability.RecordError("completion", "conversation")
		return reply, fmt.Errorf("tutor reply failed: %w", err)
	}
	return reply, nil
}

func (c *Controller) recordTranscript(role, text string) {
	if text == "" {
		return
	}
	c.appendHistory(role, text, true)
	if c.events.OnTranscript != nil {
		c.events.OnTranscript(role, text)
	}
}

// appendHistory adds a message. With merge set, text continuing the same
// speaker's turn is appended to the last message.
func (c *Controller) appendHistory(role, text string, merge bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.history); merge && n > 0 && c.history[n-1].Role == role {
		c.history[n-1].Content += text
		return
	}
	c.history = append(c.history, tutor.Message{Role: role, Content: text})
}

func (c *Controller) emitError(err error) {
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}

// Close ends every mode and silences all audio.
func (c *Controller) Close() {
	c.StopListening()
	c.StopLive()
	c.deps.Speech.Stop()
}

// micTap forwards live frames and watches them for the learner talking over
// the tutor.
type micTap struct {
	mic live.Recorder
	c   *Controller
}

func (t *micTap) Start(onFrame capture.FrameFunc) error {
	return t.mic.Start(func(frame string) {
		t.c.detectBargeIn(frame)
		onFrame(frame)
	})
}

func (t *micTap) Stop() {
	t.mic.Stop()
}

func (c *Controller) detectBargeIn(frame string) {
	if !c.cfg.LocalBargeIn {
		return
	}
	pcm, err := decodeFrame(frame)
	if err != nil {
		return
	}
	_, started, _ := c.vad.ProcessFrame(audio.BytesToInt16(pcm))
	if started && c.deps.Player.IsPlaying() {
		c.logger.Debug().Msg("Local speech over playback, flushing")
		c.deps.Player.Stop()
	}
}
