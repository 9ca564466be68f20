package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dshills/ticketgate/internal/config"
)

const (
	defaultMistralURL   = "https://api.mistral.ai"
	defaultMistralModel = "codestral-latest"
)

// Mistral implements Completer for Mistral's text completion endpoint.
type Mistral struct {
	apiKey      string
	model       string
	url         string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type mistralRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type mistralResponse struct {
	Choices []struct {
		Text    string `json:"text"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewMistral creates a new Mistral provider.
func NewMistral(cfg config.Model) (*Mistral, error) {
	if cfg.MistralKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is not set")
	}
	base := strings.TrimRight(modelOr(cfg.BaseURL, defaultMistralURL), "/")
	base = strings.TrimSuffix(base, "/v1/completions")
	base = strings.TrimSuffix(base, "/v1")
	return &Mistral{
		apiKey:      cfg.MistralKey,
		model:       modelOr(cfg.Name, defaultMistralModel),
		url:         base + "/v1/completions",
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}, nil
}

func (m *Mistral) Name() string { return "mistral" }

func (m *Mistral) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := mistralRequest{
		Model:       m.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = m.maxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = m.temperature
	}

	var result mistralResponse
	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	if err := postJSON(ctx, m.client, m.Name(), m.url, headers, body, &result); err != nil {
		return CompletionResponse{}, err
	}
	if len(result.Choices) == 0 {
		return CompletionResponse{}, transportError(m.Name(), errors.New("no choices in response"))
	}

	text := result.Choices[0].Text
	if text == "" {
		text = result.Choices[0].Message.Content
	}
	return CompletionResponse{
		Content:    text,
		TokensUsed: result.Usage.TotalTokens,
	}, nil
}
