package core

import (
	"context"
	"fmt"

	"github.com/cardspace/cardspace/internal/mapper"
	"github.com/cardspace/cardspace/internal/store"
)

// CardService runs card operations against the store and returns cards in
// their external shape. store.ErrNotFound is passed through wrapped.
type CardService struct {
	dbStore   store.Store
	generator Generator
}

func NewCardService(db store.Store, gen Generator) *CardService {
	return &CardService{dbStore: db, generator: gen}
}

func (s *CardService) List(ctx context.Context) ([]mapper.Card, error) {
	cards, err := s.dbStore.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return mapper.ToExternalList(cards), nil
}

// Create stores a new card linked to messageID when it is not nil.
func (s *CardService) Create(ctx context.Context, in mapper.CardInput, messageID *int64) (*mapper.Card, error) {
	card, err := s.dbStore.CreateCard(ctx, titleOf(in), mapper.ToPersisted(in, messageID))
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	return external(card), nil
}

// Replace overwrites the supplied fields of card id. The message link is
// always cleared.
func (s *CardService) Replace(ctx context.Context, id int64, in mapper.CardInput) (*mapper.Card, error) {
	data := mapper.ToPersisted(in, nil)
	return s.update(ctx, id, store.CardPatch{
		Title:      in.Title,
		Content:    data.Content,
		PosX:       data.PosX,
		PosY:       data.PosY,
		Width:      data.Width,
		Height:     data.Height,
		SetMessage: true,
		MessageID:  data.MessageID,
	})
}

func (s *CardService) Move(ctx context.Context, id int64, x, y float64) (*mapper.Card, error) {
	return s.update(ctx, id, store.CardPatch{PosX: &x, PosY: &y})
}

func (s *CardService) Resize(ctx context.Context, id int64, width, height float64) (*mapper.Card, error) {
	return s.update(ctx, id, store.CardPatch{Width: &width, Height: &height})
}

func (s *CardService) UpdateContent(ctx context.Context, id int64, content string) (*mapper.Card, error) {
	return s.update(ctx, id, store.CardPatch{Content: &content})
}

func (s *CardService) UpdateTitle(ctx context.Context, id int64, title string) (*mapper.Card, error) {
	return s.update(ctx, id, store.CardPatch{Title: &title})
}

func (s *CardService) Delete(ctx context.Context, id int64) error {
	if err := s.dbStore.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("failed to delete card %d: %w", id, err)
	}
	return nil
}

// Suggest asks the model for a title, relations and tags for card id, given
// the other cards and the recent conversation.
func (s *CardService) Suggest(ctx context.Context, id int64) (string, error) {
	card, err := s.dbStore.GetCard(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to get card %d: %w", id, err)
	}
	cards, err := s.dbStore.ListCards(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list cards: %w", err)
	}
	others := make([]mapper.Card, 0, len(cards))
	for _, c := range cards {
		if c.ID != card.ID {
			others = append(others, mapper.ToExternal(c))
		}
	}
	history, err := s.dbStore.ListMessages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	return s.generator.GenerateCardSuggestions(ctx, card.Content, others, history), nil
}

func (s *CardService) update(ctx context.Context, id int64, patch store.CardPatch) (*mapper.Card, error) {
	card, err := s.dbStore.UpdateCard(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update card %d: %w", id, err)
	}
	return external(card), nil
}

func titleOf(in mapper.CardInput) string {
	if in.Title == nil {
		return ""
	}
	return *in.Title
}

func external(c *store.Card) *mapper.Card {
	out := mapper.ToExternal(*c)
	return &out
}
