package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"edugenius/backend/pkg/models"
)

const contactSchema = `CREATE TABLE IF NOT EXISTS contact_messages (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	subject TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	delivered_at TIMESTAMPTZ
)`

// PostgresContactOutbox is a PostgreSQL implementation of ContactOutbox.
type PostgresContactOutbox struct {
	db *pgxpool.Pool
}

// NewPostgresContactOutbox creates a new PostgresContactOutbox.
func NewPostgresContactOutbox(db *pgxpool.Pool) *PostgresContactOutbox {
	return &PostgresContactOutbox{db: db}
}

// EnsureSchema creates the contact_messages table if it does not exist.
func (s *PostgresContactOutbox) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, contactSchema); err != nil {
		return fmt.Errorf("create contact_messages: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *PostgresContactOutbox) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Save saves a message to the outbox.
func (s *PostgresContactOutbox) Save(ctx context.Context, msg *models.ContactMessage) error {
	_, err := s.db.Exec(ctx,
		"INSERT INTO contact_messages (id, name, email, subject, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message, msg.CreatedAt)
	return err
}

// Get retrieves a message by its ID.
func (s *PostgresContactOutbox) Get(ctx context.Context, id string) (*models.ContactMessage, error) {
	var msg models.ContactMessage
	err := s.db.QueryRow(ctx,
		"SELECT id::text, name, email, subject, message, created_at FROM contact_messages WHERE id = $1", id).
		Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject, &msg.Message, &msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Pending lists undelivered messages, oldest first.
func (s *PostgresContactOutbox) Pending(ctx context.Context, limit int) ([]*models.ContactMessage, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id::text, name, email, subject, message, created_at FROM contact_messages WHERE delivered_at IS NULL ORDER BY created_at LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.ContactMessage
	for rows.Next() {
		var msg models.ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// MarkDelivered sets delivered_at on a message.
func (s *PostgresContactOutbox) MarkDelivered(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "UPDATE contact_messages SET delivered_at = now() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
