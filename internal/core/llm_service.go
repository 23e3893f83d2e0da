package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

const suggestionsFallback = "Unable to generate suggestions at this time."

// PromptContext is what the model sees besides the current user message.
type PromptContext struct {
	Messages []store.Message
	Cards    []mapper.Card
}

// Generator is the language-model collaborator. Its methods never fail: on
// any error they return a degraded textual answer.
type Generator interface {
	GenerateResponse(ctx context.Context, text string, pc PromptContext) string
	GenerateCardSuggestions(ctx context.Context, content string, existing []mapper.Card, history []store.Message) string
}

// Completer turns a single prompt into model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type LLMService struct {
	completer Completer
	timeout   time.Duration
}

func NewLLMService(c Completer, timeout time.Duration) *LLMService {
	return &LLMService{completer: c, timeout: timeout}
}

func (s *LLMService) GenerateResponse(ctx context.Context, text string, pc PromptContext) string {
	reply, err := s.complete(ctx, buildResponsePrompt(text, pc))
	if err != nil {
		slog.Error("language model response failed", "error", err)
		return responseFallback(text)
	}
	return reply
}

func (s *LLMService) GenerateCardSuggestions(ctx context.Context, content string, existing []mapper.Card, history []store.Message) string {
	prompt, err := buildSuggestionPrompt(content, existing, history)
	if err != nil {
		slog.Error("building suggestion prompt failed", "error", err)
		return suggestionsFallback
	}
	reply, err := s.complete(ctx, prompt)
	if err != nil {
		slog.Error("language model suggestions failed", "error", err)
		return suggestionsFallback
	}
	return reply
}

func (s *LLMService) complete(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return reply, nil
}

func responseFallback(text string) string {
	return fmt.Sprintf("I understand you said: \"%s\". Sorry I cannot process your request due to a technical issue.", text)
}

// GeminiService completes prompts with a Gemini model.
type GeminiService struct {
	client    *genai.Client
	modelName string
}

func NewGeminiService(ctx context.Context, apiKey, modelName string) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiService{client: client, modelName: modelName}, nil
}

func (s *GeminiService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			slog.Error("error closing GenAI client", "error", err)
		} else {
			slog.Info("GenAI client closed")
		}
	}
}

func (s *GeminiService) Complete(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			slog.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	return text.String(), nil
}
