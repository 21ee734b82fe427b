package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/live-tutor/internal/audio"
	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

// contentGenerator is the subset of *genai.Models used for synthesis.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSynthesizer implements Synthesizer with a Gemini TTS model
type GeminiSynthesizer struct {
	models contentGenerator
	model  string
	voice  string
	logger zerolog.Logger
}

// NewGeminiSynthesizer creates a synthesizer backed by the Gemini API.
func NewGeminiSynthesizer(ctx context.Context, cfg *config.Config) (*GeminiSynthesizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiSynthesizer(client.Models, cfg.TTSModel, cfg.TTSVoice), nil
}

func newGeminiSynthesizer(models contentGenerator, model, voice string) *GeminiSynthesizer {
	if voice == "" {
		voice = "Puck"
	}
	return &GeminiSynthesizer{
		models: models,
		model:  model,
		voice:  voice,
		logger: observability.WithComponent("gemini-tts"),
	}
}

// Synthesize asks the model to read text aloud and returns the first inline
// audio part.
func (g *GeminiSynthesizer) Synthesize(ctx context.Context, text string) (*Speech, error) {
	start := time.Now()

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		observability.RecordTTS(start, false)
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	observability.RecordTTS(start, true)

	blob := firstInlineAudio(resp)
	if blob == nil || len(blob.Data) == 0 {
		g.logger.Warn().Str("text", text).Msg("Model returned no audio")
		return nil, nil
	}

	return &Speech{
		Data:       base64.StdEncoding.EncodeToString(blob.Data),
		Format:     FormatPCM,
		SampleRate: rateFromMIME(blob.MIMEType, audio.DefaultPlaybackRate),
	}, nil
}

func firstInlineAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// rateFromMIME reads the rate parameter of "audio/L16;codec=pcm;rate=24000".
func rateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || key != "rate" {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}
