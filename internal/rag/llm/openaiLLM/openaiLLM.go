// Package openaiLLM generates through any OpenAI-compatible chat completions endpoint (OpenAI, Groq).
package openaiLLM

import (
	"context"
	"strings"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/customHttpClient"
	"github.com/akolanti/JournalRAG/internal/rag/llm"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

func NewOpenAIClient(apiKey, baseURL, model string) llm.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.Client()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: logger_i.NewLogger("llm_openai").With("model", model),
	}
}

func (c *client) Name() string { return "openai" }

func (c *client) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(float64(config.ModelTemperature)),
		MaxTokens:   openai.Int(config.MaxOutputTokens),
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("chat completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}
