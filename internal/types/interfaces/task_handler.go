package interfaces

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskHandler is the interface for handling asynchronous background tasks
// (the interaction matrix refresh).
type TaskHandler interface {
	Handle(ctx context.Context, t *asynq.Task) error
}
