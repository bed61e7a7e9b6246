package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openAICompatibleClient talks to any chat-completions endpoint that follows
// the OpenAI wire format, Groq included.
type openAICompatibleClient struct {
	client         openai.Client
	model          string
	temperature    float64
	maxTokens      int64
	responseFormat string
	logger         *slog.Logger
}

func newOpenAICompatibleClient(cfg Config, logger *slog.Logger) *openAICompatibleClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openAICompatibleClient{
		client:         openai.NewClient(opts...),
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      int64(cfg.MaxTokens),
		responseFormat: cfg.ResponseFormat,
		logger:         logger,
	}
}

func (c *openAICompatibleClient) Configured() bool { return true }

func (c *openAICompatibleClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:      openai.Int(c.maxTokens),
		Temperature:    openai.Float(c.temperature),
		ResponseFormat: c.format(),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	c.logger.DebugContext(ctx, "llm completion finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrEmptyCompletion
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", apperrors.ErrEmptyCompletion
	}
	return content, nil
}

func (c *openAICompatibleClient) format() openai.ChatCompletionNewParamsResponseFormatUnion {
	if c.responseFormat == ResponseFormatJSONSchema {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "ticket_classification",
					Description: openai.String("Suggested category and priority for a support ticket"),
					Schema:      ClassificationSchema(),
					Strict:      openai.Bool(true),
				},
			},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
}
