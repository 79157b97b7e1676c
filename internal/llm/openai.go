package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/antoniostano/voicecaller/internal/generation"
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// OpenAIClient calls the chat completions endpoint through the official SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
			// Retries belong to the turn budget, not the transport.
			option.WithMaxRetries(0),
			option.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		),
		model: model,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req generation.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	for _, m := range req.Messages {
		switch m.Role {
		case generation.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case generation.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	out, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var oaiErr *openai.Error
		if errors.As(err, &oaiErr) {
			body := strings.TrimSpace(oaiErr.Message)
			if body == "" {
				body = http.StatusText(oaiErr.StatusCode)
			}
			return "", &APIError{Provider: "openai", StatusCode: oaiErr.StatusCode, Body: body}
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	msg := out.Choices[0].Message
	if msg.Content == "" && msg.Refusal != "" {
		return "", fmt.Errorf("openai refused: %s", msg.Refusal)
	}
	return msg.Content, nil
}
