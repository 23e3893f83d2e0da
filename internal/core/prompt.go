package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

const (
	cardPreviewLength     = 100
	suggestionHistorySize = 5
)

func buildResponsePrompt(userMessage string, pc PromptContext) string {
	var b strings.Builder
	b.WriteString("You are a friendly and knowledgeable AI assistant helping the user clear their thoughts and organize them.\n\n")
	fmt.Fprintf(&b, "Current user message: %q", userMessage)

	if len(pc.Messages) > 0 {
		b.WriteString("\n\nPrevious conversation:\n")
		writeTranscript(&b, pc.Messages)
	}

	if len(pc.Cards) > 0 {
		b.WriteString("\n\nCurrent cards in workspace:")
		for i, card := range pc.Cards {
			fmt.Fprintf(&b, "\nCard %d: %q - %s", i+1, card.Title, preview(card.Content, cardPreviewLength))
		}
	}

	b.WriteString("\n\nPlease provide a helpful, concise response that takes into account both the conversation history and the current cards in the workspace.")
	return b.String()
}

func buildSuggestionPrompt(content string, existing []mapper.Card, history []store.Message) (string, error) {
	cardsJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode existing cards: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on this card content: %q\n\n", content)
	fmt.Fprintf(&b, "And these existing cards: %s", cardsJSON)

	if len(history) > suggestionHistorySize {
		history = history[len(history)-suggestionHistorySize:]
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		writeTranscript(&b, history)
	}

	b.WriteString("\n\nSuggest:\n1. A good title for this card\n2. Any connections or relationships to existing cards\n3. Potential categories or tags\n\nKeep suggestions concise and actionable.")
	return b.String(), nil
}

func writeTranscript(b *strings.Builder, messages []store.Message) {
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "%s: %s", msg.Role, msg.Content)
	}
}

// preview cuts s to n runes, marking the cut with "...".
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
