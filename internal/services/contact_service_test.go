package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"edugenius/backend/internal/schema"
	"edugenius/backend/pkg/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg *models.ContactMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type MockOutbox struct {
	mock.Mock
}

func (m *MockOutbox) Save(ctx context.Context, msg *models.ContactMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockOutbox) Get(ctx context.Context, id string) (*models.ContactMessage, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.ContactMessage)
	return msg, args.Error(1)
}

func (m *MockOutbox) Pending(ctx context.Context, limit int) ([]*models.ContactMessage, error) {
	args := m.Called(ctx, limit)
	msgs, _ := args.Get(0).([]*models.ContactMessage)
	return msgs, args.Error(1)
}

func (m *MockOutbox) MarkDelivered(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func validContact() map[string]any {
	return map[string]any{
		"name":    "Meera",
		"email":   "meera@example.com",
		"subject": "Feature request",
		"message": "Please add chemistry flashcards.",
	}
}

func TestContactService_Submit(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.AnythingOfType("*models.ContactMessage")).Return(nil)

	svc := NewContactService(sender, nopLogger{})
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	msg, err := svc.Submit(context.Background(), validContact())
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "meera@example.com", msg.Email)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), msg.CreatedAt)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestContactService_RejectsInvalidMessage(t *testing.T) {
	sender := new(MockSender)
	svc := NewContactService(sender, nopLogger{})

	raw := validContact()
	raw["email"] = "not an email"
	_, err := svc.Submit(context.Background(), raw)

	var fe *schema.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "email", fe.Path)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestContactService_SenderFailure(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := NewContactService(sender, nopLogger{})
	_, err := svc.Submit(context.Background(), validContact())
	assert.ErrorContains(t, err, "smtp down")
}

func TestOutboxSender_SavesMessage(t *testing.T) {
	outbox := new(MockOutbox)
	outbox.On("Save", mock.Anything, mock.MatchedBy(func(m *models.ContactMessage) bool {
		return m.Subject == "Feature request"
	})).Return(nil)

	svc := NewContactService(&OutboxSender{Outbox: outbox}, nopLogger{})
	_, err := svc.Submit(context.Background(), validContact())
	require.NoError(t, err)
	outbox.AssertExpectations(t)
}

func TestLogSender_NeverFails(t *testing.T) {
	s := &LogSender{Logger: nopLogger{}, Recipient: "support@edugenius.example"}
	assert.NoError(t, s.Send(context.Background(), &models.ContactMessage{Name: "A", Email: "a@b.c"}))
}

func TestRelayOutbox(t *testing.T) {
	first := &models.ContactMessage{ID: "m1", Subject: "One"}
	second := &models.ContactMessage{ID: "m2", Subject: "Two"}

	outbox := new(MockOutbox)
	outbox.On("Pending", mock.Anything, 10).Return([]*models.ContactMessage{first, second}, nil)
	outbox.On("MarkDelivered", mock.Anything, "m1").Return(nil)

	sender := new(MockSender)
	sender.On("Send", mock.Anything, first).Return(nil)
	sender.On("Send", mock.Anything, second).Return(errors.New("mailbox full"))

	n, err := RelayOutbox(context.Background(), outbox, sender, 10)
	assert.Equal(t, 1, n)
	assert.EqualError(t, err, "relay m2: mailbox full")
	outbox.AssertNotCalled(t, "MarkDelivered", mock.Anything, "m2")
}
