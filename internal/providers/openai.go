package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/dshills/ticketgate/internal/config"
)

const (
	defaultOpenAIModel     = "gpt-4o"
	defaultAzureAPIVersion = "2024-06-01"
)

// OpenAI implements Completer for OpenAI chat completions. The same type
// serves Azure OpenAI deployments.
type OpenAI struct {
	name        string
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAI creates a provider for the public OpenAI API.
func NewOpenAI(cfg config.Model) (*OpenAI, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeoutOr(cfg.Timeout)}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		name:        "openai",
		client:      openai.NewClient(opts...),
		model:       modelOr(cfg.Name, defaultOpenAIModel),
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

// NewAzure creates a provider for an Azure OpenAI deployment. The
// deployment name is sent as the model.
func NewAzure(cfg config.Model) (*OpenAI, error) {
	az := cfg.Azure
	switch {
	case az.Key == "":
		return nil, fmt.Errorf("AZURE_API_KEY is not set")
	case az.Endpoint == "":
		return nil, fmt.Errorf("AZURE_API_BASE is not set")
	}
	version := az.APIVersion
	if version == "" {
		version = defaultAzureAPIVersion
	}
	deployment := modelOr(az.Deployment, cfg.Name)
	if deployment == "" {
		return nil, fmt.Errorf("AZURE_DEPLOYMENT_MODEL is not set")
	}
	return &OpenAI{
		name: "azure",
		client: openai.NewClient(
			azure.WithEndpoint(az.Endpoint, version),
			azure.WithAPIKey(az.Key),
			option.WithMaxRetries(0),
			option.WithHTTPClient(&http.Client{Timeout: timeoutOr(cfg.Timeout)}),
		),
		model:       deployment,
		maxTokens:   maxTokensOr(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.temperature
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			e := statusError(o.name, apiErr.StatusCode, apiErr.RawJSON())
			e.Err = err
			return CompletionResponse{}, e
		}
		return CompletionResponse{}, classify(ctx, o.name, err)
	}

	if len(resp.Choices) == 0 {
		return CompletionResponse{}, transportError(o.name, errors.New("no choices in response"))
	}
	return CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
	}, nil
}
