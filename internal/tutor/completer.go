package tutor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/lexiqai/live-tutor/internal/config"
)

// ErrRateLimited is returned when the model provider throttles the request.
var ErrRateLimited = errors.New("completion rate limited")

// Roles used in conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// openingTurn stands in for an empty history so the tutor opens the
// conversation.
const openingTurn = "Hello! I am ready to start our language learning session."

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
}

// Completer streams a tutor reply as text deltas. The sequence ends after
// the last delta or after yielding a single error.
type Completer interface {
	Stream(ctx context.Context, history []Message, profile Profile, memories []Memory) iter.Seq2[string, error]
}

// NewCompleter returns the completer selected by LLM_PROVIDER.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case "", "gemini":
		return NewGeminiCompleter(ctx, cfg)
	case "ollama":
		return NewOllamaCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// conversation returns history, or the opening turn when history is empty.
func conversation(history []Message) []Message {
	if len(history) == 0 {
		return []Message{{Role: RoleUser, Content: openingTurn}}
	}
	return history
}

// classifyError maps provider throttling to ErrRateLimited.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "too many requests") {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
