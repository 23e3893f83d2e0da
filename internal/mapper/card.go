// Package mapper converts cards between their persisted record shape and the
// JSON shape exposed over HTTP.
package mapper

import (
	"strconv"

	"github.com/cardspace/cardspace/internal/store"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Card is the external card shape. MessageID is omitted from JSON when the
// card has no linked message.
type Card struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Position  Position `json:"position"`
	Size      Size     `json:"size"`
	MessageID *string  `json:"messageId,omitempty"`
}

type PositionInput struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type SizeInput struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// CardInput is an external card as received from a client; every field may
// be absent.
type CardInput struct {
	Title    *string        `json:"title"`
	Content  *string        `json:"content"`
	Position *PositionInput `json:"position"`
	Size     *SizeInput     `json:"size"`
}

func ToExternal(c store.Card) Card {
	out := Card{
		ID:       strconv.FormatInt(c.ID, 10),
		Title:    c.Title,
		Content:  c.Content,
		Position: Position{X: c.PosX, Y: c.PosY},
		Size:     Size{Width: c.Width, Height: c.Height},
	}
	if c.MessageID != nil {
		id := strconv.FormatInt(*c.MessageID, 10)
		out.MessageID = &id
	}
	return out
}

// ToExternalList maps cards in order. The result is never nil.
func ToExternalList(cards []store.Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, ToExternal(c))
	}
	return out
}

// ToPersisted builds the stored field set for in. The title is not carried
// and the message link comes only from messageID, never from the input.
func ToPersisted(in CardInput, messageID *int64) store.CardData {
	data := store.CardData{
		Content:   in.Content,
		MessageID: messageID,
	}
	if in.Position != nil {
		data.PosX = in.Position.X
		data.PosY = in.Position.Y
	}
	if in.Size != nil {
		data.Width = in.Size.Width
		data.Height = in.Size.Height
	}
	return data
}
