package handlers

import (
	"context"

	"github.com/hibiken/asynq"
)

// IAsynqClient defines the interface for the Asynq client methods used by handlers.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
