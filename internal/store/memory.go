package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps cards and messages in process memory. Data is lost on
// exit; it backs `memory://` database URLs and tests.
type MemoryStore struct {
	mu          sync.Mutex
	messages    []Message
	cards       map[int64]Card
	nextMessage int64
	nextCard    int64
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cards: make(map[int64]Card),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) ListMessages(ctx context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, role Role, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessage++
	msg := Message{ID: s.nextMessage, Role: role, Content: content, CreatedAt: s.now()}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *MemoryStore) ListCards(ctx context.Context) ([]Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		if c.MessageID != nil {
			if msg, ok := s.messageLocked(*c.MessageID); ok {
				c.Message = &msg
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetCard(ctx context.Context, id int64) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateCard(ctx context.Context, title string, data CardData) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCard++
	c := Card{
		ID:      s.nextCard,
		Title:   title,
		Content: valueOr(data.Content, ""),
		PosX:    valueOr(data.PosX, 0),
		PosY:    valueOr(data.PosY, 0),
		Width:   valueOr(data.Width, DefaultCardWidth),
		Height:  valueOr(data.Height, DefaultCardHeight),
	}
	if data.MessageID != nil {
		id := *data.MessageID
		c.MessageID = &id
	}
	s.cards[c.ID] = c
	return &c, nil
}

func (s *MemoryStore) UpdateCard(ctx context.Context, id int64, patch CardPatch) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Title = valueOr(patch.Title, c.Title)
	c.Content = valueOr(patch.Content, c.Content)
	c.PosX = valueOr(patch.PosX, c.PosX)
	c.PosY = valueOr(patch.PosY, c.PosY)
	c.Width = valueOr(patch.Width, c.Width)
	c.Height = valueOr(patch.Height, c.Height)
	if patch.SetMessage {
		c.MessageID = nil
		if patch.MessageID != nil {
			mid := *patch.MessageID
			c.MessageID = &mid
		}
	}
	s.cards[id] = c
	return &c, nil
}

func (s *MemoryStore) DeleteCard(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards[id]; !ok {
		return ErrNotFound
	}
	delete(s.cards, id)
	return nil
}

func (s *MemoryStore) messageLocked(id int64) (Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
