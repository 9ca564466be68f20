package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/ticketgate/internal/config"
)

// CompletionRequest contains the data sent to an LLM.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse contains the raw reply from an LLM.
type CompletionResponse struct {
	Content    string
	TokensUsed int
}

// Completer is the provider abstraction interface. Implementations make a
// single attempt per call and report failures as *Error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Name() string
}

const (
	defaultMaxTokens = 3200
	defaultTimeout   = 30 * time.Second
)

// New creates a provider from model settings.
func New(ctx context.Context, cfg config.Model) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	case "azure":
		return NewAzure(cfg)
	case "gemini", "google":
		return NewGemini(ctx, cfg)
	case "mistral":
		return NewMistral(cfg)
	case "ollama", "lmstudio":
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// Names lists the accepted provider names. "google" and "lmstudio" are
// accepted as aliases of gemini and ollama.
var Names = []string{"anthropic", "openai", "azure", "gemini", "mistral", "ollama"}

// DefaultModel returns the model used when none is configured. Azure has
// none: the deployment selects the model.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return defaultAnthropicModel
	case "openai":
		return defaultOpenAIModel
	case "gemini", "google":
		return defaultGeminiModel
	case "mistral":
		return defaultMistralModel
	case "ollama", "lmstudio":
		return defaultOllamaModel
	default:
		return ""
	}
}

func maxTokensOr(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

func modelOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
