package llm

import (
	"context"
	"errors"
)

// Provider is a single-shot text generator. Implementations do not retry.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

var ErrEmptyResponse = errors.New("model returned no text")
