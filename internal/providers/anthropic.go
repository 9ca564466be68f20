package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/ticketgate/internal/config"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic implements Completer for Anthropic's Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropic creates a new Anthropic provider. SDK retries are disabled so
// the caller's RetryPolicy is the only retry loop.
func NewAnthropic(cfg config.Model) (*Anthropic, error) {
	if cfg.AnthropicKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeoutOr(cfg.Timeout)}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       modelOr(cfg.Name, defaultAnthropicModel),
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = a.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = a.temperature
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			e := statusError(a.Name(), apiErr.StatusCode, apiErr.RawJSON())
			e.Err = err
			return CompletionResponse{}, e
		}
		return CompletionResponse{}, classify(ctx, a.Name(), err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return CompletionResponse{
		Content:    text.String(),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}
