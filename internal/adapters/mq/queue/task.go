package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of inference work. Done receives exactly one value: the
// error returned by Run, or the reason Run was never called.
type Task struct {
	ID         string
	Stage      string
	Ctx        context.Context
	Run        func(ctx context.Context) error
	Done       chan error
	EnqueuedAt time.Time
}

// NewTask builds a Task bound to ctx. Cancelling ctx aborts Run.
func NewTask(ctx context.Context, stage string, run func(ctx context.Context) error) Task {
	return Task{
		ID:         uuid.NewString(),
		Stage:      stage,
		Ctx:        ctx,
		Run:        run,
		Done:       make(chan error, 1),
		EnqueuedAt: time.Now(),
	}
}

// Complete delivers the outcome without blocking. Only the first call is
// observed by the waiter.
func (t Task) Complete(err error) {
	select {
	case t.Done <- err:
	default:
	}
}
