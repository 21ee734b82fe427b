package tutor

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/lexiqai/live-tutor/internal/config"
	"github.com/lexiqai/live-tutor/internal/observability"
)

// OllamaCompleter streams replies from a local Ollama server through its
// OpenAI-compatible endpoint.
type OllamaCompleter struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOllamaCompleter creates a completer for OLLAMA_URL and OLLAMA_MODEL.
func NewOllamaCompleter(cfg *config.Config) *OllamaCompleter {
	return newOllamaCompleter(cfg.OllamaURL, cfg.OllamaModel)
}

func newOllamaCompleter(baseURL, model string) *OllamaCompleter {
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1/"),
		option.WithAPIKey("ollama"),
		option.WithMaxRetries(0),
	)
	return &OllamaCompleter{
		client: &client,
		model:  model,
		logger: observability.WithComponent("ollama-completer"),
	}
}

func (o *OllamaCompleter) Stream(ctx context.Context, history []Message, profile Profile, memories []Memory) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		params := openai.ChatCompletionNewParams{
			Model:    o.model,
			Messages: ollamaMessages(BuildSystemInstruction(profile, memories), history),
		}

		stream := o.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		first := true
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if first {
				observability.RecordFirstDelta(start)
				first = false
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			observability.RecordCompletion(false)
			o.logger.Warn().Err(err).Str("model", o.model).Msg("Completion stream failed")
			yield("", classifyError(err))
			return
		}
		observability.RecordCompletion(true)
	}
}

func ollamaMessages(system string, history []Message) []openai.ChatCompletionMessageParamUnion {
	msgs := conversation(history)
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	params = append(params, openai.SystemMessage(system))
	for _, m := range msgs {
		if m.Role == RoleUser {
			params = append(params, openai.UserMessage(m.Content))
		} else {
			params = append(params, openai.AssistantMessage(m.Content))
		}
	}
	return params
}
