package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/MOULOUNDOU/digicode-immo/internal/config"
	"github.com/MOULOUNDOU/digicode-immo/internal/tasks"
)

// --- Mocks ---

// MockEmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

// --- Tests ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{SmtpFromAddress: "noreply@digicode-immo.example.com"}

	p := tasks.NewTaskProcessor(cfg, mockEmailSender, nil, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{
		To:      "broker@example.com",
		Subject: "Nouvelle demande pour votre annonce",
		Body:    "Un client souhaite visiter le studio.",
	})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"broker@example.com"},
		"Nouvelle demande pour votre annonce",
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: broker@example.com")
			assert.Contains(t, msgStr, fmt.Sprintf("From: %s", cfg.SmtpFromAddress))
			assert.Contains(t, msgStr, "Subject: Nouvelle demande pour votre annonce")
			assert.Contains(t, msgStr, "Un client souhaite visiter le studio.")
			return true
		}),
	).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender), nil, nil, nil, nil, nil)

	task := asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not json"))
	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Malformed payloads must not retry")
}

func TestHandleEmailDeliveryTask_NoRecipient(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(&config.Config{}, mockEmailSender, nil, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.EmailTaskPayload{Subject: "Sans destinataire"})
	task := asynq.NewTask(tasks.TypeEmailDelivery, payloadBytes)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.True(t, errors.Is(err, asynq.SkipRetry))
	mockEmailSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleListingSweepTask_InvalidUserID(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, nil, nil, nil, nil, nil, nil)

	payloadBytes, _ := json.Marshal(tasks.ListingSweepPayload{UserID: "!!!not-a-sixid!!!"})
	task := asynq.NewTask(tasks.TypeListingSweep, payloadBytes)

	err := p.HandleListingSweepTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Unparseable user IDs must not retry")
}
