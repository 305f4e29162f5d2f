package anthropicLLM

import (
	"context"
	"strings"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/customHttpClient"
	"github.com/akolanti/JournalRAG/internal/rag/llm"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type client struct {
	api    anthropic.Client
	model  string
	logger *logger_i.Logger
}

func NewAnthropicClient(apiKey, baseURL, model string) llm.Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.Client()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &client{
		api:    anthropic.NewClient(opts...),
		model:  model,
		logger: logger_i.NewLogger("llm_anthropic").With("model", model),
	}
}

func (c *client) Name() string { return "anthropic" }

func (c *client) Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   config.MaxOutputTokens,
		Temperature: anthropic.Float(float64(config.ModelTemperature)),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("message request failed", "error", err)
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}
