// Package bridge lets plain goroutines block on asynchronous tasks.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/modkeeper/internal/task"
)

// WaitFor blocks until the task reaches a terminal status or the context is done.
// It returns immediately if the task is already terminal.
func WaitFor(ctx context.Context, t *task.Task) error {
	if t.Status().IsTerminal() {
		return nil
	}

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := t.OnEnded(func(task.Ended) { once.Do(func() { close(done) }) })
	defer unsubscribe()

	// The task could have ended between the first check and the subscription.
	if t.Status().IsTerminal() {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartAndWait starts the task and waits for its ended notification. When ctx is done the
// task is cancelled and the wait continues until the run returns.
func StartAndWait(ctx context.Context, t *task.Task, args any) (task.Ended, error) {
	endedC := make(chan task.Ended, 1)
	unsubscribe := t.OnEnded(func(e task.Ended) {
		select {
		case endedC <- e:
		default:
		}
	})
	defer unsubscribe()

	if err := t.Start(ctx, args); err != nil {
		return task.Ended{}, fmt.Errorf("could not start task: %w", err)
	}

	return <-endedC, nil
}
