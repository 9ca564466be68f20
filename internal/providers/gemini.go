package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/dshills/ticketgate/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini implements Completer for the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGemini creates a new Gemini provider.
func NewGemini(ctx context.Context, cfg config.Model) (*Gemini, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.GeminiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       modelOr(cfg.Name, defaultGeminiModel),
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(float32(temperature)),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			e := statusError(g.Name(), apiErr.Code, apiErr.Message)
			e.Err = err
			return CompletionResponse{}, e
		}
		return CompletionResponse{}, classify(ctx, g.Name(), err)
	}

	out := CompletionResponse{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
