package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dshills/ticketgate/internal/config"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// Ollama implements Completer for Ollama and LM Studio through their
// OpenAI-compatible chat endpoint.
type Ollama struct {
	apiKey      string
	model       string
	url         string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOllama creates a new Ollama provider. No API key is required by default.
func NewOllama(cfg config.Model) (*Ollama, error) {
	base := cfg.OllamaHost
	if base == "" {
		base = modelOr(cfg.BaseURL, defaultOllamaURL)
	}
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, "/v1/chat/completions")
	base = strings.TrimSuffix(base, "/v1")

	return &Ollama{
		apiKey:      cfg.OllamaKey,
		model:       modelOr(cfg.Name, defaultOllamaModel),
		url:         base + "/v1/chat/completions",
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := chatRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = o.maxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = o.temperature
	}

	var headers map[string]string
	if o.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + o.apiKey}
	}

	var result chatResponse
	if err := postJSON(ctx, o.client, o.Name(), o.url, headers, body, &result); err != nil {
		return CompletionResponse{}, err
	}
	if len(result.Choices) == 0 {
		return CompletionResponse{}, transportError(o.Name(), errors.New("no choices in response"))
	}
	return CompletionResponse{
		Content:    result.Choices[0].Message.Content,
		TokensUsed: result.Usage.TotalTokens,
	}, nil
}
