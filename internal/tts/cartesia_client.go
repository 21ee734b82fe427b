package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
	"github.com/lexiqai/live-tutor/internal/resilience"
)

const cartesiaAPIURL = "https://api.cartesia.ai/tts/bytes"

// CartesiaSynthesizer implements Synthesizer using Cartesia's bytes endpoint
type CartesiaSynthesizer struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	sampleRate int
	httpClient *http.Client
	logger     zerolog.Logger
}

// CartesiaRequest represents the request payload for Cartesia TTS API
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// NewCartesiaSynthesizer creates a Cartesia synthesizer
func NewCartesiaSynthesizer(cfg *config.Config) *CartesiaSynthesizer {
	return &CartesiaSynthesizer{
		apiKey:     cfg.CartesiaAPIKey,
		apiURL:     cartesiaAPIURL,
		voiceID:    cfg.CartesiaVoiceID,
		modelID:    cfg.CartesiaModelID,
		sampleRate: audio.DefaultPlaybackRate,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     observability.WithComponent("cartesia-tts"),
	}
}

// Synthesize requests raw 16-bit PCM for text.
func (c *CartesiaSynthesizer) Synthesize(ctx context.Context, text string) (*Speech, error) {
	start := time.Now()

	reqBody := CartesiaRequest{
		ModelID:    c.modelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.voiceID},
		OutputFormat: cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.sampleRate,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Cartesia-Version", "2024-06-10")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordTTS(start, false)
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		observability.RecordTTS(start, false)
		err := fmt.Errorf("%w: cartesia API returned status %d: %s", ErrSynthesis, resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordTTS(start, false)
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesis, err)
	}
	observability.RecordTTS(start, true)

	if len(audioData) == 0 {
		c.logger.Warn().Str("text", text).Msg("Cartesia returned empty audio data")
		return nil, nil
	}

	c.logger.Debug().
		Int("bytes", len(audioData)).
		Dur("latency", time.Since(start)).
		Msg("Synthesized speech")

	return &Speech{
		Data:       base64.StdEncoding.EncodeToString(audioData),
		Format:     FormatPCM,
		SampleRate: c.sampleRate,
	}, nil
}
