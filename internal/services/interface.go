package services

import (
	"context"

	"edugenius/backend/internal/schema"
	"edugenius/backend/pkg/models"
)

// FlowRunner runs a registered flow by name. *flow.Registry implements it.
type FlowRunner interface {
	Run(ctx context.Context, name string, raw map[string]any) (schema.Record, error)
}

// Sender delivers a validated contact message.
type Sender interface {
	Send(ctx context.Context, msg *models.ContactMessage) error
}

// Logger is the subset of the application logger the services use.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}
