package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/live-tutor/internal/tutor"
)

func decodeFrame(frame string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(frame)
}

// StartListening streams the microphone to the listener. A final transcript
// followed by ListenDelay of quiet becomes a turn; the microphone is paused
// while the reply is spoken and resumes ResumeDelay after it drains.
func (c *Controller) StartListening(ctx context.Context) error {
	if c.deps.Listener == nil {
		return ErrNoListener
	}

	c.StopLive()
	c.StopListening()

	if err := c.deps.Listener.Start(); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}
	if err := c.startMic(); err != nil {
		c.deps.Listener.Stop()
		return err
	}

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.mode = ModeListening
	c.listenCancel = cancel
	c.listenDone = done
	c.mu.Unlock()

	go c.listenLoop(listenCtx, done)
	c.logger.Info().Msg("Listening for the learner")
	return nil
}

// StopListening stops the microphone and the listener. Safe to call when
// not listening.
func (c *Controller) StopListening() {
	c.mu.Lock()
	cancel := c.listenCancel
	done := c.listenDone
	c.listenCancel = nil
	c.listenDone = nil
	if c.mode == ModeListening {
		c.mode = ModeIdle
	}
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.deps.Mic.Stop()
	if err := c.deps.Listener.Stop(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to stop listener")
	}
}

func (c *Controller) startMic() error {
	return c.deps.Mic.Start(func(frame string) {
		pcm, err := decodeFrame(frame)
		if err != nil {
			return
		}
		// Dropped while the listener reconnects
		_ = c.deps.Listener.SendAudio(pcm)
	})
}

func (c *Controller) listenLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		pending []string
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	transcripts := c.deps.Listener.Transcripts()
	for {
		select {
		case <-ctx.Done():
			return

		case tr, ok := <-transcripts:
			if !ok {
				return
			}
			if !tr.IsFinal || strings.TrimSpace(tr.Text) == "" {
				continue
			}
			pending = append(pending, strings.TrimSpace(tr.Text))
			if c.events.OnTranscript != nil {
				c.events.OnTranscript(tutor.RoleUser, tr.Text)
			}
			if timer == nil {
				timer = time.NewTimer(c.cfg.ListenDelay)
			} else {
				timer.Reset(c.cfg.ListenDelay)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			text := strings.Join(pending, " ")
			pending = nil
			c.replyWhileMuted(ctx, text)
		}
	}
}

// replyWhileMuted runs a turn with the microphone off so the tutor does not
// hear itself.
func (c *Controller) replyWhileMuted(ctx context.Context, text string) {
	c.deps.Mic.Stop()

	if _, err := c.runTurn(ctx, text); err != nil {
		c.logger.Warn().Err(err).Msg("Turn failed")
		c.emitError(err)
	}
	if err := c.deps.Speech.WaitIdle(ctx); err != nil {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.cfg.ResumeDelay):
	}

	if err := c.startMic(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to resume microphone")
		c.emitError(err)
	}
}
