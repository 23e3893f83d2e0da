package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an update or delete targets a missing id.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator used by the services.
type Store interface {
	ListMessages(ctx context.Context) ([]Message, error)
	CreateMessage(ctx context.Context, role Role, content string) (*Message, error)

	ListCards(ctx context.Context) ([]Card, error)
	GetCard(ctx context.Context, id int64) (*Card, error)
	CreateCard(ctx context.Context, title string, data CardData) (*Card, error)
	UpdateCard(ctx context.Context, id int64, patch CardPatch) (*Card, error)
	DeleteCard(ctx context.Context, id int64) error

	Close() error
}

// Open picks a backend from the shape of databaseURL: postgres URLs go to
// PostgreSQL, memory:// keeps data in process, anything else is treated as a
// SQLite path.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "memory://" {
		return NewMemoryStore(), nil
	}
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return NewPostgresStore(ctx, databaseURL)
	}
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("empty database path")
	}
	return NewSQLiteStore(path)
}

// buildCardUpdate renders the SET clause for patch. placeholder returns the
// bind marker for the n-th (1-based) argument.
func buildCardUpdate(patch CardPatch, placeholder func(n int) string) (string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = "+placeholder(len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.PosX != nil {
		add("pos_x", *patch.PosX)
	}
	if patch.PosY != nil {
		add("pos_y", *patch.PosY)
	}
	if patch.Width != nil {
		add("width", *patch.Width)
	}
	if patch.Height != nil {
		add("height", *patch.Height)
	}
	if patch.SetMessage {
		if patch.MessageID != nil {
			add("message_id", *patch.MessageID)
		} else {
			add("message_id", nil)
		}
	}
	return strings.Join(sets, ", "), args
}
