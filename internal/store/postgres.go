package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migratePostgres(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, role, content, created_at FROM messages ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var role string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = Role(role)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, role Role, content string) (*Message, error) {
	msg := Message{Role: role, Content: content}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO messages (role, content, created_at) VALUES ($1, $2, $3) RETURNING id, created_at",
		string(role), content, time.Now().UTC(),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *PostgresStore) ListCards(ctx context.Context) ([]Card, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+cardColumns+`, m.id, m.role, m.content, m.created_at
        FROM cards c
        LEFT JOIN messages m ON m.id = c.message_id
        ORDER BY c.id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		var card Card
		var msgID *int64
		var msgRole, msgContent *string
		var msgCreatedAt *time.Time
		err := rows.Scan(&card.ID, &card.Title, &card.Content, &card.PosX, &card.PosY, &card.Width, &card.Height, &card.MessageID,
			&msgID, &msgRole, &msgContent, &msgCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if msgID != nil {
			card.Message = &Message{ID: *msgID, Role: Role(deref(msgRole)), Content: deref(msgContent)}
			if msgCreatedAt != nil {
				card.Message.CreatedAt = *msgCreatedAt
			}
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

func (s *PostgresStore) GetCard(ctx context.Context, id int64) (*Card, error) {
	var card Card
	err := s.pool.QueryRow(ctx, "SELECT "+cardColumns+" FROM cards c WHERE c.id = $1", id).
		Scan(&card.ID, &card.Title, &card.Content, &card.PosX, &card.PosY, &card.Width, &card.Height, &card.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	return &card, nil
}

func (s *PostgresStore) CreateCard(ctx context.Context, title string, data CardData) (*Card, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
        INSERT INTO cards (title, content, pos_x, pos_y, width, height, message_id)
        VALUES ($1, COALESCE($2::text, ''), COALESCE($3::double precision, 0), COALESCE($4::double precision, 0),
                COALESCE($5::double precision, $6), COALESCE($7::double precision, $8), $9)
        RETURNING id
    `, title, data.Content, data.PosX, data.PosY,
		data.Width, float64(DefaultCardWidth), data.Height, float64(DefaultCardHeight), data.MessageID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	return s.GetCard(ctx, id)
}

func (s *PostgresStore) UpdateCard(ctx context.Context, id int64, patch CardPatch) (*Card, error) {
	set, args := buildCardUpdate(patch, func(n int) string { return "$" + strconv.Itoa(n) })
	if set == "" {
		return s.GetCard(ctx, id)
	}

	query := "UPDATE cards SET " + set + " WHERE id = $" + strconv.Itoa(len(args)+1)
	tag, err := s.pool.Exec(ctx, query, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetCard(ctx, id)
}

func (s *PostgresStore) DeleteCard(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cards WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
