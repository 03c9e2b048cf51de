// Package instance makes sure only one instance runs per game mode. Launches that
// can't own the game mode forward their intent to the instance that does.
package instance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/ipc"
	"github.com/slok/modkeeper/internal/lock"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/metrics"
	"github.com/slok/modkeeper/internal/model"
)

// Lock is a held exclusive lock.
type Lock interface {
	Release() error
}

// Locker acquires exclusive named locks without blocking, returning lock.ErrLocked when held.
type Locker interface {
	TryAcquire(name string) (Lock, error)
}

// LockerFunc is a Locker as a function.
type LockerFunc func(name string) (Lock, error)

func (f LockerFunc) TryAcquire(name string) (Lock, error) { return f(name) }

// FileLocker adapts a file locker.
func FileLocker(l *lock.Locker) Locker {
	return LockerFunc(func(name string) (Lock, error) {
		lk, err := l.TryAcquire(name)
		if err != nil {
			return nil, err
		}
		return lk, nil
	})
}

// Messenger sends commands to the live instance.
type Messenger interface {
	AddItem(ctx context.Context, id string) error
	BringToFront(ctx context.Context) error
	Close() error
}

// Dialer connects to the live instance. It must fail with model.ErrTransportUnavailable
// when nothing answers.
type Dialer interface {
	Dial(ctx context.Context, addr ipc.Address) (Messenger, error)
}

// DialerFunc is a Dialer as a function.
type DialerFunc func(ctx context.Context, addr ipc.Address) (Messenger, error)

func (f DialerFunc) Dial(ctx context.Context, addr ipc.Address) (Messenger, error) {
	return f(ctx, addr)
}

// SocketDialer returns the dialer of the unix socket IPC listeners in a directory.
func SocketDialer(socketDir string, logger log.Logger) Dialer {
	return DialerFunc(func(ctx context.Context, addr ipc.Address) (Messenger, error) {
		c, err := ipc.Dial(ctx, ipc.ClientConfig{Address: addr, SocketDir: socketDir, Logger: logger})
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Role is the role of a launch for its game mode.
type Role string

const (
	// RoleOwner is the launch that holds the game mode and continues the startup.
	RoleOwner Role = "owner"
	// RoleForwarded is the launch that handed its intent to the owner and must exit.
	RoleForwarded Role = "forwarded"
)

// CoordinatorConfig is the configuration of the coordinator.
type CoordinatorConfig struct {
	AppName   string
	Locker    Locker
	Dialer    Dialer
	SocketDir string
	// Attempts is the number of lock or forward attempts before giving up.
	Attempts int
	// Backoff is the wait between attempts.
	Backoff time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	Logger  log.Logger
}

func (c *CoordinatorConfig) defaults() error {
	if c.AppName == "" {
		c.AppName = conventions.AppName
	}
	if c.Locker == nil {
		return fmt.Errorf("locker is required")
	}
	if c.SocketDir == "" {
		return fmt.Errorf("socket dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "instance.Coordinator"})
	if c.Dialer == nil {
		c.Dialer = SocketDialer(c.SocketDir, c.Logger)
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff == 0 {
		c.Backoff = 5 * time.Second
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return nil
}

// Coordinator decides if a launch owns its game mode or forwards its intent.
type Coordinator struct {
	appName   string
	locker    Locker
	dialer    Dialer
	socketDir string
	attempts  int
	backoff   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    log.Logger
}

// NewCoordinator returns a new coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Coordinator{
		appName:   cfg.AppName,
		locker:    cfg.Locker,
		dialer:    cfg.Dialer,
		socketDir: cfg.SocketDir,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
		sleep:     cfg.Sleep,
		logger:    cfg.Logger,
	}, nil
}

// Claim acquires the game mode for this launch or forwards the intent to the instance
// owning it. Each attempt tries the lock first and then the live instance, waiting the
// backoff between attempts. When every attempt fails the error wraps
// model.ErrTransportUnavailable.
func (c *Coordinator) Claim(ctx context.Context, mode model.GameMode, intent model.Intent) (*Claim, error) {
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game mode: %w", err)
	}

	lockName := conventions.LockName(c.appName, mode.ID)
	addr := ipc.NewAddress(c.appName, mode.ID)
	logger := c.logger.WithValues(log.Kv{"mode": mode.ID})

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lk, err := c.locker.TryAcquire(lockName)
		switch {
		case err == nil:
			metrics.LockAttempts.WithLabelValues("acquired").Inc()
			logger.Infof("Game mode lock %s acquired", lockName)
			return &Claim{
				role:      RoleOwner,
				lock:      lk,
				addr:      addr,
				socketDir: c.socketDir,
				logger:    logger,
				ready:     make(chan struct{}),
			}, nil
		case !errors.Is(err, lock.ErrLocked):
			metrics.LockAttempts.WithLabelValues(metrics.ResultError).Inc()
			return nil, fmt.Errorf("could not acquire game mode lock: %w", err)
		}

		metrics.LockAttempts.WithLabelValues("held").Inc()
		logger.Debugf("Game mode lock held by another instance (attempt %d/%d)", attempt, c.attempts)

		err = c.forward(ctx, addr, mode, intent)
		if err == nil {
			logger.Infof("Intent forwarded to the live instance")
			return &Claim{role: RoleForwarded, addr: addr, logger: logger, ready: make(chan struct{})}, nil
		}
		if !errors.Is(err, model.ErrTransportUnavailable) {
			return nil, fmt.Errorf("could not forward intent to the live instance: %w", err)
		}
		lastErr = err
		logger.Warningf("Live instance not reachable (attempt %d/%d): %s", attempt, c.attempts, err)

		if attempt < c.attempts {
			if err := c.sleep(ctx, c.backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("game mode %q is locked and its live instance is unreachable after %d attempts: %w", mode.ID, c.attempts, errors.Join(model.ErrTransportUnavailable, lastErr))
}

// forward sends the item to the live instance, an item of another game mode is never sent.
func (c *Coordinator) forward(ctx context.Context, addr ipc.Address, mode model.GameMode, intent model.Intent) error {
	m, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer m.Close()

	if intent.Item == nil {
		return m.BringToFront(ctx)
	}
	if intent.Item.ModeID != mode.ID {
		c.logger.Warningf("Item %s is not for game mode %s, not forwarded", intent.Item.Raw, mode.ID)
		return m.BringToFront(ctx)
	}
	return m.AddItem(ctx, intent.Item.Raw)
}

// Claim is the result of claiming a game mode.
type Claim struct {
	role      Role
	lock      Lock
	addr      ipc.Address
	socketDir string
	logger    log.Logger
	ready     chan struct{}

	mu          sync.Mutex
	released    bool
	stopListen  context.CancelFunc
	listenDone  chan struct{}
	readyOnce   sync.Once
	releaseOnce sync.Once
	releaseErr  error
}

// Role returns the role of the launch.
func (c *Claim) Role() Role { return c.role }

// Address returns the IPC address of the game mode.
func (c *Claim) Address() ipc.Address { return c.addr }

// Listening is closed once the owner accepts commands from other launches.
func (c *Claim) Listening() <-chan struct{} { return c.ready }

// Listen serves the commands of other launches to the sink until ctx is done or the
// claim is released. Only the owner can listen, once.
func (c *Claim) Listen(ctx context.Context, sink ipc.Sink) error {
	c.mu.Lock()
	if c.role != RoleOwner || c.released || c.listenDone != nil {
		c.mu.Unlock()
		return fmt.Errorf("claim can't listen: %w", model.ErrInvalidState)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.stopListen = cancel
	c.listenDone = make(chan struct{})
	done := c.listenDone
	c.mu.Unlock()
	defer close(done)
	defer cancel()

	l, err := ipc.NewListener(ipc.ListenerConfig{
		Address:   c.addr,
		SocketDir: c.socketDir,
		Sink:      sink,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create ipc listener: %w", err)
	}

	go func() {
		select {
		case <-l.Ready():
			c.readyOnce.Do(func() { close(c.ready) })
		case <-ctx.Done():
		}
	}()

	return l.Run(ctx)
}

// Release stops listening and releases the game mode lock. It is safe to call multiple times.
func (c *Claim) Release() error {
	c.releaseOnce.Do(func() {
		c.mu.Lock()
		c.released = true
		stop, done := c.stopListen, c.listenDone
		c.mu.Unlock()

		if stop != nil {
			stop()
			<-done
		}

		if c.lock != nil {
			c.releaseErr = c.lock.Release()
		}
		c.logger.Debugf("Game mode claim released")
	})
	return c.releaseErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
