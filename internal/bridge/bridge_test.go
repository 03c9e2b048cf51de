package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/bridge"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
)

func newTask(t *testing.T, run task.RunFunc) *task.Task {
	tk, err := task.New(task.TaskConfig{Name: "test", Run: run})
	require.NoError(t, err)
	return tk
}

func TestWaitFor(t *testing.T) {
	tests := map[string]struct {
		run       func(release <-chan struct{}) task.RunFunc
		start     bool
		ctxCancel bool
		expStatus task.Status
		expErr    error
	}{
		"Waiting a task that ends should return once it ended": {
			run: func(release <-chan struct{}) task.RunFunc {
				return func(ctx context.Context, t *task.Task, args any) task.Result {
					<-release
					return task.Completed(nil)
				}
			},
			start:     true,
			expStatus: task.StatusComplete,
		},
		"Waiting an idle task whose ctx is done should return the ctx error": {
			run: func(release <-chan struct{}) task.RunFunc {
				return func(ctx context.Context, t *task.Task, args any) task.Result { return task.Completed(nil) }
			},
			ctxCancel: true,
			expStatus: task.StatusIdle,
			expErr:    context.Canceled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			release := make(chan struct{})
			tk := newTask(t, test.run(release))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if test.ctxCancel {
				cancel()
			}

			if test.start {
				require.NoError(tk.Start(context.Background(), nil))
				go func() {
					time.Sleep(10 * time.Millisecond)
					close(release)
				}()
			}

			err := bridge.WaitFor(ctx, tk)
			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			assert.Equal(test.expStatus, tk.Status())
		})
	}
}

func TestWaitForTerminalTaskReturnsImmediately(t *testing.T) {
	require := require.New(t)

	tk := newTask(t, func(ctx context.Context, t *task.Task, args any) task.Result { return task.Completed(nil) })
	_, err := bridge.StartAndWait(context.Background(), tk, nil)
	require.NoError(err)

	// A cancelled context proves no blocking happens.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(bridge.WaitFor(ctx, tk))
}

func TestWaitForManyTimesNeverMissesTheSignal(t *testing.T) {
	require := require.New(t)

	for i := 0; i < 200; i++ {
		tk := newTask(t, func(ctx context.Context, t *task.Task, args any) task.Result { return task.Completed(nil) })
		require.NoError(tk.Start(context.Background(), nil))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(bridge.WaitFor(ctx, tk))
		cancel()
		require.True(tk.Status().IsTerminal())
	}
}

func TestStartAndWait(t *testing.T) {
	tests := map[string]struct {
		run        task.RunFunc
		args       any
		cancelCtx  bool
		expStatus  task.Status
		expValue   any
		expMessage string
	}{
		"A successful task should return its value": {
			run: func(ctx context.Context, t *task.Task, args any) task.Result {
				return task.Completed(args.(string) + "-done")
			},
			args:      "test",
			expStatus: task.StatusComplete,
			expValue:  "test-done",
		},
		"A failing task should return its message": {
			run: func(ctx context.Context, t *task.Task, args any) task.Result {
				return task.Failed("boom %d", 42)
			},
			expStatus:  task.StatusError,
			expMessage: "boom 42",
		},
		"A cancelled context should cancel the task and wait for it": {
			run: func(ctx context.Context, t *task.Task, args any) task.Result {
				<-ctx.Done()
				return task.Completed(nil)
			},
			cancelCtx: true,
			expStatus: task.StatusCancelled,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tk := newTask(t, test.run)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if test.cancelCtx {
				go func() {
					time.Sleep(10 * time.Millisecond)
					cancel()
				}()
			}

			ended, err := bridge.StartAndWait(ctx, tk, test.args)
			require.NoError(err)
			assert.Equal(test.expStatus, ended.Status)
			assert.Equal(test.expValue, ended.Value)
			assert.Equal(test.expMessage, ended.Message)
			assert.Equal(tk.ID(), ended.TaskID)
		})
	}
}

func TestStartAndWaitNotIdle(t *testing.T) {
	assert := assert.New(t)

	release := make(chan struct{})
	defer close(release)
	tk := newTask(t, func(ctx context.Context, t *task.Task, args any) task.Result {
		<-release
		return task.Completed(nil)
	})
	require.NoError(t, tk.Start(context.Background(), nil))

	_, err := bridge.StartAndWait(context.Background(), tk, nil)
	assert.ErrorIs(err, model.ErrInvalidState)
}
