package core

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIService completes prompts through langchaingo's OpenAI client.
type OpenAIService struct {
	llm llms.Model
}

func NewOpenAIService(apiKey, modelName string) (*OpenAIService, error) {
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(modelName))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return &OpenAIService{llm: llm}, nil
}

func (s *OpenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	return out, nil
}
