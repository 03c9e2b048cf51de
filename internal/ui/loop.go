package ui

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

type loopKey struct{}

// OnLoop returns true when ctx belongs to code running on a UI loop.
func OnLoop(ctx context.Context) bool {
	_, ok := ctx.Value(loopKey{}).(*Loop)
	return ok
}

// LoopConfig is the configuration of the UI loop.
type LoopConfig struct {
	Logger log.Logger
}

func (c *LoopConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ui.Loop"})
	return nil
}

type call struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	errC chan error
}

// Loop is the single goroutine that owns every UI surface. Other goroutines hand work to
// it with Invoke and Post.
type Loop struct {
	logger log.Logger

	mu     sync.Mutex
	queue  []call
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLoop returns a new UI loop, it does nothing until Run is called.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Loop{
		logger: cfg.Logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Run processes the UI work on the calling goroutine, pinned to its OS thread, until ctx
// is done. Pending calls fail after Run returns.
func (l *Loop) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		l.mu.Lock()
		l.closed = true
		pending := l.queue
		l.queue = nil
		l.mu.Unlock()
		close(l.done)

		for _, c := range pending {
			if c.errC != nil {
				c.errC <- fmt.Errorf("ui loop stopped: %w", model.ErrInvalidState)
			}
		}
	}()

	l.logger.Debugf("UI loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debugf("UI loop stopped")
			return nil
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			c := l.queue[0]
			l.queue = l.queue[1:]
			l.mu.Unlock()

			err := l.exec(c)
			if c.errC != nil {
				c.errC <- err
			} else if err != nil {
				l.logger.Warningf("Posted UI work failed: %s", err)
			}
		}
	}
}

func (l *Loop) exec(c call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("UI work panicked: %v", r)
			err = fmt.Errorf("ui work panicked: %v", r)
		}
	}()

	return c.fn(context.WithValue(c.ctx, loopKey{}, l))
}

func (l *Loop) enqueue(c call) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("ui loop stopped: %w", model.ErrInvalidState)
	}

	l.queue = append(l.queue, c)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Invoke runs fn on the loop and waits for its result. When ctx already belongs to the
// loop fn runs inline, so modal handlers can call back into the UI.
//
// If ctx is done before fn runs, Invoke returns the ctx error and fn may still run later.
func (l *Loop) Invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	if OnLoop(ctx) {
		return fn(ctx)
	}

	errC := make(chan error, 1)
	if err := l.enqueue(call{ctx: ctx, fn: fn, errC: errC}); err != nil {
		return err
	}

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post schedules fn on the loop without waiting.
func (l *Loop) Post(fn func(ctx context.Context)) {
	err := l.enqueue(call{
		ctx: context.Background(),
		fn: func(ctx context.Context) error {
			fn(ctx)
			return nil
		},
	})
	if err != nil {
		l.logger.Debugf("Dropped posted UI work: %s", err)
	}
}

// Done is closed when the loop stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }
