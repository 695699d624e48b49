package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"edugenius/backend/internal/repository"
	"edugenius/backend/internal/schema"
	"edugenius/backend/pkg/models"
)

func intPtr(v int) *int { return &v }

// ContactSchema is the shape of a contact form submission.
var ContactSchema = &schema.Schema{
	Name:        "ContactEmailInput",
	Description: "A message from the contact form.",
	Fields: []schema.Field{
		{Name: "name", Kind: schema.KindString, MinLength: intPtr(1), MaxLength: intPtr(200), Description: "The full name of the person sending the message."},
		{Name: "email", Kind: schema.KindString, Format: schema.FormatEmail, Description: "The email address of the sender."},
		{Name: "subject", Kind: schema.KindString, MinLength: intPtr(1), MaxLength: intPtr(300), Description: "The subject of the message."},
		{Name: "message", Kind: schema.KindString, MinLength: intPtr(1), MaxLength: intPtr(10000), Description: "The content of the message."},
	},
}

// ContactService accepts contact form messages and hands them to a Sender.
type ContactService struct {
	sender Sender
	logger Logger
	now    func() time.Time
}

// NewContactService creates a new ContactService.
func NewContactService(sender Sender, logger Logger) *ContactService {
	return &ContactService{sender: sender, logger: logger, now: time.Now}
}

// Submit validates raw against ContactSchema and sends it. Validation failures are
// returned as *schema.FieldError and nothing is sent.
func (s *ContactService) Submit(ctx context.Context, raw map[string]any) (*models.ContactMessage, error) {
	rec, err := schema.Validate(ContactSchema, raw)
	if err != nil {
		return nil, err
	}

	msg := &models.ContactMessage{
		ID:        uuid.New().String(),
		Name:      rec["name"].(string),
		Email:     rec["email"].(string),
		Subject:   rec["subject"].(string),
		Message:   rec["message"].(string),
		CreatedAt: s.now().UTC(),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error("contact message not sent", "id", msg.ID, "error", err)
		return nil, fmt.Errorf("send contact message: %w", err)
	}
	s.logger.Info("contact message accepted", "id", msg.ID)
	return msg, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger    Logger
	Recipient string
}

// Send logs msg.
func (l *LogSender) Send(ctx context.Context, msg *models.ContactMessage) error {
	l.Logger.Info("contact message",
		"recipient", l.Recipient,
		"from", fmt.Sprintf("%s <%s>", msg.Name, msg.Email),
		"subject", msg.Subject,
		"message", msg.Message,
	)
	return nil
}

// OutboxSender stores messages in an outbox for an external mailer.
type OutboxSender struct {
	Outbox repository.ContactOutbox
}

// Send saves msg to the outbox.
func (o *OutboxSender) Send(ctx context.Context, msg *models.ContactMessage) error {
	return o.Outbox.Save(ctx, msg)
}

// RelayOutbox hands up to limit pending outbox messages to sender and marks each one
// delivered. It stops at the first failure and reports how many were relayed.
func RelayOutbox(ctx context.Context, outbox repository.ContactOutbox, sender Sender, limit int) (int, error) {
	msgs, err := outbox.Pending(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i, msg := range msgs {
		if err := sender.Send(ctx, msg); err != nil {
			return i, fmt.Errorf("relay %s: %w", msg.ID, err)
		}
		if err := outbox.MarkDelivered(ctx, msg.ID); err != nil {
			return i, fmt.Errorf("mark %s delivered: %w", msg.ID, err)
		}
	}
	return len(msgs), nil
}
