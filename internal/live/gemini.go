package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

const (
	setupTimeout = 15 * time.Second
	closeTimeout = time.Second
)

// GeminiTransport speaks the Gemini Live BidiGenerateContent protocol over a
// websocket.
type GeminiTransport struct {
	endpoint  string
	apiKey    string
	model     string
	voice     string
	inputRate int
	dialer    *websocket.Dialer
	logger    zerolog.Logger
}

// NewGeminiTransport creates a transport from configuration.
func NewGeminiTransport(cfg *config.Config) *GeminiTransport {
	inputRate := cfg.CaptureSampleRate
	if inputRate <= 0 {
		inputRate = audio.DefaultCaptureRate
	}
	return &GeminiTransport{
		endpoint:  cfg.LiveEndpoint,
		apiKey:    cfg.GeminiAPIKey,
		model:     cfg.LiveModel,
		voice:     cfg.LiveVoice,
		inputRate: inputRate,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: observability.WithComponent("gemini-live"),
	}
}

// Dial opens the websocket, sends the setup message and waits for the
// endpoint to acknowledge it.
func (t *GeminiTransport) Dial(ctx context.Context, cfg Config) (Conn, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid live endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", t.apiKey)
	u.RawQuery = q.Encode()

	ws, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn := &geminiConn{
		ws:       ws,
		mimeType: fmt.Sprintf("audio/pcm;rate=%d", t.inputRate),
	}

	if err := conn.writeJSON(t.setupMessage(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	if err := conn.awaitSetup(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	t.logger.Debug().Str("model", t.model).Str("voice", t.voice).Msg("Live session configured")
	return conn, nil
}

func (t *GeminiTransport) setupMessage(cfg Config) setupMessage {
	model := t.model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	voice := t.voice
	if voice == "" {
		voice = "Puck"
	}

	msg := setupMessage{
		Setup: setup{
			Model: model,
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: speechConfig{
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
					},
				},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &Content{Parts: []Part{{Text: cfg.SystemInstruction}}}
	}
	return msg
}

type geminiConn struct {
	ws       *websocket.Conn
	mimeType string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *geminiConn) awaitSetup(ctx context.Context) error {
	deadline := time.Now().Add(setupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		msg, err := c.Receive()
		if err != nil {
			return fmt.Errorf("setup not acknowledged: %w", err)
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

func (c *geminiConn) SendAudio(base64PCM string) error {
	return c.writeJSON(realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []Blob{{MIMEType: c.mimeType, Data: base64PCM}},
		},
	})
}

func (c *geminiConn) Receive() (*ServerMessage, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Not a shape we understand
			continue
		}
		return &msg, nil
	}
}

func (c *geminiConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *geminiConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
