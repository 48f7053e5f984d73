package partition

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("partition")

// ErrExecutorClosed is returned when a task is submitted to a closed executor.
var ErrExecutorClosed = errors.New("partition executor is closed")

// Executor runs the tasks of one partition one at a time in arrival order.
// Tasks of different partitions run in parallel on their own executors.
//
// Thread-safety: Submit and Execute can be called concurrently.
type Executor struct {
	partitionID uint32
	queue       *util.LockFreeMPSC[func()]
}

// NewExecutor creates the executor of partitionID and starts its consumer.
func NewExecutor(partitionID uint32) *Executor {
	e := &Executor{partitionID: partitionID}
	e.queue = util.NewLockFreeMPSC(e.run)
	return e
}

func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("partition %d: task panicked: %v", e.partitionID, r)
		}
	}()
	task()
}

// Submit queues task without waiting for it.
func (e *Executor) Submit(task func()) error {
	if !e.queue.Push(task) {
		return ErrExecutorClosed
	}
	return nil
}

// Execute queues task and waits until it ran or ctx is done. If ctx ends
// first the task still runs later; only the wait is abandoned.
func (e *Executor) Execute(ctx context.Context, task func()) error {
	done := make(chan struct{})
	err := e.Submit(func() {
		defer close(done)
		task()
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("partition %d: %w", e.partitionID, ctx.Err())
	}
}

// Close stops accepting tasks. Queued tasks still run; Done is closed after
// the last one.
func (e *Executor) Close() {
	e.queue.Close()
}

func (e *Executor) Done() <-chan struct{} { return e.queue.Done() }
func (e *Executor) Pending() int          { return e.queue.Len() }
func (e *Executor) PartitionID() uint32   { return e.partitionID }
