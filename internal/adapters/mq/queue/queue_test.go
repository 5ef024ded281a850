package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/wearsense/internal/adapters/mq/queue"
	"github.com/smartystreets/goconvey/convey"
)

func noop(context.Context) error { return nil }

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	convey.Convey("Given a queue with capacity 2", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		ctx := context.Background()

		convey.So(q.Len(ctx), convey.ShouldEqual, 0)
		convey.So(q.Capacity(), convey.ShouldEqual, 2)

		convey.Convey("When a task is enqueued and dequeued", func() {
			task := queue.NewTask(ctx, "detect", noop)
			convey.So(q.Enqueue(ctx, task), convey.ShouldBeTrue)
			convey.So(q.Len(ctx), convey.ShouldEqual, 1)

			got := <-q.Dequeue(ctx)

			convey.Convey("Then the same task comes out and the queue is empty", func() {
				convey.So(got.ID, convey.ShouldEqual, task.ID)
				convey.So(got.Stage, convey.ShouldEqual, "detect")
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the queue is full", func() {
			convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)), convey.ShouldBeTrue)
			convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)), convey.ShouldBeTrue)

			convey.Convey("Then further tasks are rejected without blocking", func() {
				convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)), convey.ShouldBeFalse)
				convey.So(q.Len(ctx), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the caller context is already done", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			convey.Convey("Then enqueue is refused", func() {
				convey.So(q.Enqueue(cctx, queue.NewTask(cctx, "detect", noop)), convey.ShouldBeFalse)
			})
		})
	})
}

func TestInMemoryQueue_Close(t *testing.T) {
	convey.Convey("Given a queue holding two tasks", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		ctx := context.Background()
		convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)), convey.ShouldBeTrue)
		convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "classify", noop)), convey.ShouldBeTrue)
		convey.So(q.IsClosed(), convey.ShouldBeFalse)

		convey.Convey("When it is closed", func() {
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then new tasks are refused and pending ones drain", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)), convey.ShouldBeFalse)

				var stages []string
				for task := range q.Dequeue(ctx) {
					stages = append(stages, task.Stage)
				}
				convey.So(stages, convey.ShouldResemble, []string{"detect", "classify"})
				convey.So(q.Close(), convey.ShouldBeNil)
			})
		})
	})
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	convey.Convey("Given concurrent producers and consumers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ctx := context.Background()
		const producers, perProducer = 8, 50

		var consumed atomic.Int64
		var consumers sync.WaitGroup
		for i := 0; i < 4; i++ {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for range q.Dequeue(ctx) {
					consumed.Add(1)
				}
			}()
		}

		var producersWG sync.WaitGroup
		for i := 0; i < producers; i++ {
			producersWG.Add(1)
			go func() {
				defer producersWG.Done()
				for j := 0; j < perProducer; j++ {
					for !q.Enqueue(ctx, queue.NewTask(ctx, "detect", noop)) {
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}
		producersWG.Wait()
		convey.So(q.Close(), convey.ShouldBeNil)
		consumers.Wait()

		convey.Convey("Then every task is consumed exactly once", func() {
			convey.So(consumed.Load(), convey.ShouldEqual, producers*perProducer)
			convey.So(q.Len(ctx), convey.ShouldEqual, 0)
		})
	})
}

func TestTaskComplete(t *testing.T) {
	convey.Convey("Given a task", t, func() {
		task := queue.NewTask(context.Background(), "classify", noop)

		convey.Convey("When completed twice", func() {
			first := errors.New("first")
			task.Complete(first)
			task.Complete(errors.New("second"))

			convey.Convey("Then only the first outcome is delivered", func() {
				convey.So(<-task.Done, convey.ShouldEqual, first)
				extra := false
				select {
				case <-task.Done:
					extra = true
				default:
				}
				convey.So(extra, convey.ShouldBeFalse)
			})
		})
	})
}
