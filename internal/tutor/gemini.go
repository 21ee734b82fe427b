package tutor

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

// contentStreamer is the subset of *genai.Models used for completion.
type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiCompleter streams replies from a Gemini text model.
type GeminiCompleter struct {
	models contentStreamer
	model  string
	logger zerolog.Logger
}

// NewGeminiCompleter creates a completer backed by the Gemini API.
func NewGeminiCompleter(ctx context.Context, cfg *config.Config) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiCompleter(client.Models, cfg.LLMModel), nil
}

func newGeminiCompleter(models contentStreamer, model string) *GeminiCompleter {
	return &GeminiCompleter{
		models: models,
		model:  model,
		logger: observability.WithComponent("gemini-completer"),
	}
}

func (g *GeminiCompleter) Stream(ctx context.Context, history []Message, profile Profile, memories []Memory) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		cfg := &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(BuildSystemInstruction(profile, memories))},
			},
		}

		first := true
		for chunk, err := range g.models.GenerateContentStream(ctx, g.model, geminiContents(history), cfg) {
			if err != nil {
				observability.RecordCompletion(false)
				g.logger.Warn().Err(err).Msg("Completion stream failed")
				yield("", classifyError(err))
				return
			}

			text := chunkText(chunk)
			if text == "" {
				continue
			}
			if first {
				observability.RecordFirstDelta(start)
				first = false
			}
			if !yield(text, nil) {
				return
			}
		}
		observability.RecordCompletion(true)
	}
}

func geminiContents(history []Message) []*genai.Content {
	msgs := conversation(history)
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := RoleModel
		if m.Role == RoleUser {
			role = RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	return contents
}

func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text
}
