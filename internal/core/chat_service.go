package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cardspace/cardspace/internal/store"
)

type ChatService struct {
	dbStore   store.Store
	generator Generator
}

func NewChatService(db store.Store, gen Generator) *ChatService {
	return &ChatService{
		dbStore:   db,
		generator: gen,
	}
}

// ListMessages returns the whole transcript, oldest first.
func (s *ChatService) ListMessages(ctx context.Context) ([]store.Message, error) {
	messages, err := s.dbStore.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []store.Message{}
	}
	return messages, nil
}

// PostMessage stores a message. Assistant messages are returned as stored;
// user messages are answered by the model and only the reply is returned.
// A stored user message is not rolled back when the reply cannot be stored.
func (s *ChatService) PostMessage(ctx context.Context, role store.Role, content string) ([]store.Message, error) {
	msg, err := s.dbStore.CreateMessage(ctx, role, content)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s message: %w", role, err)
	}
	if role == store.RoleAssistant {
		return []store.Message{*msg}, nil
	}

	history, err := s.dbStore.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	prior := make([]store.Message, 0, len(history))
	for _, m := range history {
		if m.ID != msg.ID {
			prior = append(prior, m)
		}
	}

	reply := s.generator.GenerateResponse(ctx, content, PromptContext{Messages: prior})

	replyMsg, err := s.dbStore.CreateMessage(ctx, store.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	slog.Debug("assistant reply stored", "user_message_id", msg.ID, "reply_id", replyMsg.ID, "history", len(prior))
	return []store.Message{*replyMsg}, nil
}
