package core

import (
	"context"
	"errors"

	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

var errStore = errors.New("database error")

type responseCall struct {
	text string
	pc   PromptContext
}

type fakeGenerator struct {
	reply       string
	suggestions string
	calls       []responseCall
	suggestCall struct {
		content  string
		existing []mapper.Card
		history  []store.Message
	}
}

func (g *fakeGenerator) GenerateResponse(ctx context.Context, text string, pc PromptContext) string {
	g.calls = append(g.calls, responseCall{text: text, pc: pc})
	return g.reply
}

func (g *fakeGenerator) GenerateCardSuggestions(ctx context.Context, content string, existing []mapper.Card, history []store.Message) string {
	g.suggestCall.content = content
	g.suggestCall.existing = existing
	g.suggestCall.history = history
	return g.suggestions
}

// failingStore fails the operations named in failOn and delegates the rest.
type failingStore struct {
	*store.MemoryStore
	failOn map[string]bool
	// failCreateAfter fails CreateMessage once this many calls succeeded (0 = never).
	failCreateAfter int
	creates         int
}

func (s *failingStore) ListMessages(ctx context.Context) ([]store.Message, error) {
	if s.failOn["ListMessages"] {
		return nil, errStore
	}
	return s.MemoryStore.ListMessages(ctx)
}

func (s *failingStore) CreateMessage(ctx context.Context, role store.Role, content string) (*store.Message, error) {
	s.creates++
	if s.failCreateAfter > 0 && s.creates > s.failCreateAfter {
		return nil, errStore
	}
	return s.MemoryStore.CreateMessage(ctx, role, content)
}

func (s *failingStore) ListCards(ctx context.Context) ([]store.Card, error) {
	if s.failOn["ListCards"] {
		return nil, errStore
	}
	return s.MemoryStore.ListCards(ctx)
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (c *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("no deadline set")
	}
	return c.reply, c.err
}
