package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const cardColumns = "c.id, c.title, c.content, c.pos_x, c.pos_y, c.width, c.height, c.message_id"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err = migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Message methods
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, role, content, created_at FROM messages ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, role Role, content string) (*Message, error) {
	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO messages (role, content, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	res, err := stmt.ExecContext(ctx, role, content, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute message insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read message id: %w", err)
	}
	return &Message{ID: id, Role: role, Content: content, CreatedAt: now}, nil
}

// Card methods
func (s *SQLiteStore) ListCards(ctx context.Context) ([]Card, error) {
	query := `
        SELECT ` + cardColumns + `, m.id, m.role, m.content, m.created_at
        FROM cards c
        LEFT JOIN messages m ON m.id = c.message_id
        ORDER BY c.id ASC
    `
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		var card Card
		var messageID sql.NullInt64
		var msgID sql.NullInt64
		var msgRole, msgContent sql.NullString
		var msgCreatedAt sql.NullTime
		err := rows.Scan(&card.ID, &card.Title, &card.Content, &card.PosX, &card.PosY, &card.Width, &card.Height, &messageID,
			&msgID, &msgRole, &msgContent, &msgCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		if messageID.Valid {
			card.MessageID = &messageID.Int64
		}
		if msgID.Valid {
			card.Message = &Message{
				ID:        msgID.Int64,
				Role:      Role(msgRole.String),
				Content:   msgContent.String,
				CreatedAt: msgCreatedAt.Time,
			}
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s *SQLiteStore) GetCard(ctx context.Context, id int64) (*Card, error) {
	var card Card
	var messageID sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards c WHERE c.id = ?", id).
		Scan(&card.ID, &card.Title, &card.Content, &card.PosX, &card.PosY, &card.Width, &card.Height, &messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if messageID.Valid {
		card.MessageID = &messageID.Int64
	}
	return &card, nil
}

func (s *SQLiteStore) CreateCard(ctx context.Context, title string, data CardData) (*Card, error) {
	stmt, err := s.db.PrepareContext(ctx, `
        INSERT INTO cards (title, content, pos_x, pos_y, width, height, message_id)
        VALUES (?, COALESCE(?, ''), COALESCE(?, 0), COALESCE(?, 0), COALESCE(?, ?), COALESCE(?, ?), ?)
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, title, data.Content, data.PosX, data.PosY,
		data.Width, DefaultCardWidth, data.Height, DefaultCardHeight, data.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute card insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read card id: %w", err)
	}
	return s.GetCard(ctx, id)
}

func (s *SQLiteStore) UpdateCard(ctx context.Context, id int64, patch CardPatch) (*Card, error) {
	set, args := buildCardUpdate(patch, func(int) string { return "?" })
	if set == "" {
		return s.GetCard(ctx, id)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE cards SET "+set+" WHERE id = ?", append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute card update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetCard(ctx, id)
}

func (s *SQLiteStore) DeleteCard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to execute card delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
