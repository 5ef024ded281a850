package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/wearsense/internal/adapters/mq/queue"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/pkg/metrics"
)

// dispatcher hands model calls to the worker pool and waits for them with a
// deadline. The task context carries the deadline, so a late model call is
// cancelled instead of being abandoned.
type dispatcher struct {
	queue   queue.Queue
	timeout time.Duration
}

// submit runs fn on the worker pool and returns its value. Errors carry one of
// apperr.ErrBackpressure, apperr.ErrTimeout or apperr.ErrService.
func submit[T any](ctx context.Context, d *dispatcher, stage string, fn func(context.Context) (T, error)) (T, error) {
	op := "inference." + stage
	var zero T

	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var value T
	task := queue.NewTask(taskCtx, stage, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		value = v
		return nil
	})

	if !d.queue.Enqueue(taskCtx, task) {
		metrics.RecordErrorByComponent("dispatcher", "backpressure")
		return zero, apperr.NewKind(op, apperr.ErrBackpressure, "inference queue is full")
	}

	select {
	case err := <-task.Done:
		if err == nil {
			// value was written before Done was signalled.
			return value, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordInferenceTimeout(stage)
			return zero, apperr.WrapKind(op, apperr.ErrTimeout, err)
		}
		metrics.RecordInferenceError(stage)
		return zero, apperr.WrapKind(op, apperr.ErrService, err)
	case <-taskCtx.Done():
		err := taskCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordInferenceTimeout(stage)
			return zero, apperr.WrapKind(op, apperr.ErrTimeout, err)
		}
		return zero, apperr.WrapKind(op, apperr.ErrService, err)
	}
}
