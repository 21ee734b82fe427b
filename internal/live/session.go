// Package live runs a realtime voice session: microphone frames go up a
// duplex connection, synthesized speech and transcripts come back.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/capture"
	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/resilience"
)

const sendQueueSize = 32

// ErrSessionClosed is returned by Connect when Disconnect won the race.
var ErrSessionClosed = errors.New("live session closed")

// Role identifies the speaker of a transcript fragment.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Config configures the remote conversation.
type Config struct {
	SystemInstruction string
}

// Callbacks receive session events. Any of them may be nil. They are called
// from the session's reader goroutine.
type Callbacks struct {
	OnAudioData     func(base64PCM string)
	OnInterrupted   func()
	OnTranscription func(text string, isFinal bool, role Role)
	OnError         func(err error)
	OnClose         func()
}

// Recorder is the microphone side of a session.
type Recorder interface {
	Start(onFrame capture.FrameFunc) error
	Stop()
}

// Option configures a Session.
type Option func(*Session)

// WithCircuitBreaker guards dials with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Session) { s.breaker = cb }
}

// WithRetry retries failed dials.
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(s *Session) { s.retry = cfg }
}

// Session is one tutoring client's live connection. At most one remote
// session is active per Session value; Connect tears down the previous one.
type Session struct {
	transport Transport
	recorder  Recorder
	breaker   *resilience.CircuitBreaker
	retry     *resilience.RetryConfig

	mu        sync.Mutex
	state     State
	gen       uint64
	id        string
	conn      Conn
	frames    chan string
	cancel    context.CancelFunc // aborts the dial of the current connect
	callbacks Callbacks
	metrics   *observability.SessionMetrics
	logger    zerolog.Logger
}

// NewSession creates an idle session.
func NewSession(transport Transport, recorder Recorder, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		recorder:  recorder,
		retry:     &resilience.RetryConfig{MaxAttempts: 1},
		state:     StateIdle,
		logger:    observability.WithComponent("live"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the id of the current or last session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Connect opens a new remote session and starts the recorder once it is
// open. Failures are reported through OnError as well as returned; the
// session is left torn down.
func (s *Session) Connect(ctx context.Context, cfg Config, cb Callbacks) error {
	s.Disconnect()

	s.mu.Lock()
	if !s.setState(StateConnecting) {
		s.mu.Unlock()
		return fmt.Errorf("cannot connect from state %s", s.state)
	}
	s.gen++
	gen := s.gen
	dialCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.id = uuid.New().String()
	s.callbacks = cb
	s.metrics = observability.NewSessionMetrics(s.id)
	s.logger = observability.WithComponent("live").With().Str("session_id", s.id).Logger()
	logger := s.logger
	metrics := s.metrics
	s.mu.Unlock()

	logger.Info().Msg("Connecting live session")

	conn, err := s.dial(dialCtx, cfg)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
		if s.fail(gen, err) {
			metrics.RecordError("dial", "live")
		}
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.frames = make(chan string, sendQueueSize)
	s.setState(StateOpen)
	frames := s.frames
	s.mu.Unlock()

	metrics.RecordOpen()
	logger.Info().Msg("Live session open")

	go s.writeLoop(conn, frames, metrics, logger)
	go s.readLoop(gen, conn, cb, metrics)

	if err := s.recorder.Start(func(frame string) { s.sendAudio(gen, frame) }); err != nil {
		s.fail(gen, err)
		return err
	}

	// The session may have ended while the recorder was starting.
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		s.recorder.Stop()
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) dial(ctx context.Context, cfg Config) (Conn, error) {
	var conn Conn
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt := func() error {
			c, err := s.transport.Dial(ctx, cfg)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}
		if s.breaker == nil {
			return attempt()
		}
		err := s.breaker.Call(attempt)
		observability.UpdateCircuitBreakerState(s.breaker.Name(), int(s.breaker.GetState()))
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(s.breaker.Name())
		}
		return err
	}, s.retry, resilience.IsRetryableNetworkError)
	return conn, err
}

// Disconnect stops the recorder and closes the connection. Safe to call at
// any time, including when never connected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return
	}
	s.gen++
	conn, metrics, logger := s.detachLocked()
	s.setState(StateClosed)
	s.mu.Unlock()

	s.recorder.Stop()
	if conn != nil {
		conn.Close()
	}
	if metrics != nil {
		metrics.RecordEnd("disconnected")
	}
	logger.Info().Msg("Live session disconnected")
}

// fail moves session gen to Errored, tears it down and reports err. It
// returns false if gen is no longer current.
func (s *Session) fail(gen uint64, err error) bool {
	s.mu.Lock()
	if gen != s.gen || !s.state.Active() {
		s.mu.Unlock()
		return false
	}
	s.gen++
	conn, metrics, logger := s.detachLocked()
	s.setState(StateErrored)
	onError := s.callbacks.OnError
	s.mu.Unlock()

	s.recorder.Stop()
	if conn != nil {
		conn.Close()
	}
	if metrics != nil {
		metrics.RecordEnd("errored")
	}
	logger.Error().Err(err).Msg("Live session failed")
	if onError != nil {
		onError(err)
	}
	return true
}

// closed handles a clean close by the remote side.
func (s *Session) closed(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.state.Active() {
		s.mu.Unlock()
		return
	}
	s.gen++
	conn, metrics, logger := s.detachLocked()
	s.setState(StateClosed)
	onClose := s.callbacks.OnClose
	s.mu.Unlock()

	s.recorder.Stop()
	if conn != nil {
		conn.Close()
	}
	if metrics != nil {
		metrics.RecordEnd("closed")
	}
	logger.Info().Msg("Live session closed by remote")
	if onClose != nil {
		onClose()
	}
}

func (s *Session) detachLocked() (Conn, *observability.SessionMetrics, zerolog.Logger) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	if s.frames != nil {
		close(s.frames)
		s.frames = nil
	}
	return conn, s.metrics, s.logger
}

func (s *Session) setState(to State) bool {
	if !CanTransition(s.state, to) {
		s.logger.Warn().Stringer("from", s.state).Stringer("to", to).Msg("Illegal state transition")
		return false
	}
	s.logger.Debug().Stringer("from", s.state).Stringer("to", to).Msg("State transition")
	s.state = to
	return true
}

// sendAudio queues a captured frame. Frames for a stale or closed session
// are dropped silently, and so are frames that arrive faster than the
// socket drains.
func (s *Session) sendAudio(gen uint64, frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != StateOpen || s.frames == nil {
		return
	}
	select {
	case s.frames <- frame:
	default:
		s.metrics.RecordFrame(false, len(frame))
	}
}

func (s *Session) writeLoop(conn Conn, frames <-chan string, metrics *observability.SessionMetrics, logger zerolog.Logger) {
	for frame := range frames {
		if err := conn.SendAudio(frame); err != nil {
			logger.Debug().Err(err).Msg("Dropping frame after send failure")
			metrics.RecordFrame(false, len(frame))
			continue
		}
		metrics.RecordFrame(true, len(frame))
	}
}

func (s *Session) readLoop(gen uint64, conn Conn, cb Callbacks, metrics *observability.SessionMetrics) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.closed(gen)
			} else {
				s.fail(gen, fmt.Errorf("%w: %v", ErrTransport, err))
			}
			return
		}
		// The socket may still hand out buffered frames after teardown.
		if !s.current(gen) {
			return
		}
		dispatch(msg, cb, metrics, func() bool { return s.current(gen) })
	}
}

// current reports whether gen is the open session.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && s.state == StateOpen
}

// dispatch routes one inbound message to the callbacks. Messages without
// server content are ignored. Delivery stops as soon as live reports false.
func dispatch(msg *ServerMessage, cb Callbacks, metrics *observability.SessionMetrics, live func() bool) {
	if msg == nil || msg.ServerContent == nil {
		return
	}
	sc := msg.ServerContent

	var modelText string
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				if !live() {
					return
				}
				metrics.RecordInbound(len(part.InlineData.Data))
				if cb.OnAudioData != nil {
					cb.OnAudioData(part.InlineData.Data)
				}
			}
			if modelText == "" && part.Text != "" {
				modelText = part.Text
			}
		}
	}

	if !live() {
		return
	}
	if sc.Interrupted {
		metrics.RecordInterruption("remote")
		if cb.OnInterrupted != nil {
			cb.OnInterrupted()
		}
	}

	if modelText == "" && sc.OutputTranscription != nil {
		modelText = sc.OutputTranscription.Text
	}
	if modelText != "" && cb.OnTranscription != nil {
		if !live() {
			return
		}
		cb.OnTranscription(modelText, true, RoleModel)
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && cb.OnTranscription != nil {
		if !live() {
			return
		}
		cb.OnTranscription(sc.InputTranscription.Text, true, RoleUser)
	}
}
