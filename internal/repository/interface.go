package repository

import (
	"context"
	"errors"

	"edugenius/backend/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ContactOutbox stores contact messages for an external mailer to deliver.
type ContactOutbox interface {
	// Save stores a message. IDs are unique.
	Save(ctx context.Context, msg *models.ContactMessage) error
	// Get retrieves a message by its ID.
	Get(ctx context.Context, id string) (*models.ContactMessage, error)
	// Pending lists undelivered messages, oldest first.
	Pending(ctx context.Context, limit int) ([]*models.ContactMessage, error)
	// MarkDelivered records that a message has been handed to the mailer.
	MarkDelivered(ctx context.Context, id string) error
}
