package stage

import (
	"context"

	"dvrmanager/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Recording) error
	Execute(context.Context, *queue.Recording) error
	HealthCheck(context.Context) Health
}
