package store

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two transcript roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Card struct {
	ID        int64
	Title     string
	Content   string
	PosX      float64
	PosY      float64
	Width     float64
	Height    float64
	MessageID *int64
	Message   *Message // Linked message, populated by ListCards only
}

// CardData is the persisted field set produced from an external card.
// A nil field was not supplied by the caller.
type CardData struct {
	Content   *string
	PosX      *float64
	PosY      *float64
	Width     *float64
	Height    *float64
	MessageID *int64
}

// CardPatch is a partial card update. Nil fields are left as stored.
type CardPatch struct {
	Title   *string
	Content *string
	PosX    *float64
	PosY    *float64
	Width   *float64
	Height  *float64

	// SetMessage writes MessageID (nil clears the link).
	SetMessage bool
	MessageID  *int64
}

// Defaults for card fields not supplied on create.
const (
	DefaultCardWidth  = 300
	DefaultCardHeight = 200
)
