package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// Status represents the state of a task.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true when the task finished its run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusIncomplete, StatusError, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusIdle:       {StatusQueued},
	StatusQueued:     {StatusRunning, StatusCancelling},
	StatusRunning:    {StatusCancelling, StatusComplete, StatusIncomplete, StatusError},
	StatusCancelling: {StatusCancelled},
	StatusComplete:   {StatusIdle},
	StatusIncomplete: {StatusIdle},
	StatusError:      {StatusIdle},
	StatusCancelled:  {StatusIdle},
}

// CanTransition returns true if a task can go from one status to the other.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result is what a run function returns. A zero Status means StatusComplete.
type Result struct {
	Status  Status
	Message string
	Value   any
}

// Completed returns a successful result.
func Completed(value any) Result { return Result{Status: StatusComplete, Value: value} }

// Failed returns an unrecoverable failure result.
func Failed(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Unfinished returns a recoverable failure result, the caller may retry after driving
// more interaction.
func Unfinished(format string, args ...any) Result {
	return Result{Status: StatusIncomplete, Message: fmt.Sprintf(format, args...)}
}

// RunFunc is the work executed by a task. It must poll ctx (or t.IsCancelling) to honor
// cancellation.
type RunFunc func(ctx context.Context, t *Task, args any) Result

// Progress is a snapshot of the task progress.
type Progress struct {
	OverallMessage  string
	OverallProgress int
	OverallMax      int
	OverallStep     int
	ItemMessage     string
	ItemProgress    int
	ItemMax         int
}

// Started is sent when the task execution begins.
type Started struct {
	TaskID string
	Name   string
}

// Ended is sent exactly once per Start, after the run function returned or panicked.
type Ended struct {
	TaskID  string
	Name    string
	Status  Status
	Message string
	Value   any
}

// StatusChange is sent on every status transition.
type StatusChange struct {
	TaskID string
	From   Status
	To     Status
}

// TaskConfig is the configuration of a task.
type TaskConfig struct {
	Name    string
	Run     RunFunc
	Tracker *Tracker
	Logger  log.Logger
}

func (c *TaskConfig) defaults() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Run == nil {
		return fmt.Errorf("run func is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"task": c.Name})
	return nil
}

// Task is a cancellable, progress reporting unit of asynchronous work.
//
// Notification handlers are called in transition order and must not change the state
// of the task that is notifying them.
type Task struct {
	id      string
	name    string
	run     RunFunc
	tracker *Tracker
	logger  log.Logger

	mu       sync.Mutex
	emitMu   sync.Mutex
	status   Status
	progress Progress
	message  string
	value    any
	cancel   context.CancelFunc
	stopHook func() bool

	started  registry[Started]
	ended    registry[Ended]
	changes  registry[StatusChange]
	progSubs registry[Progress]
}

// New returns a new idle task.
func New(cfg TaskConfig) (*Task, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Task{
		id:       ulid.Make().String(),
		name:     cfg.Name,
		run:      cfg.Run,
		tracker:  cfg.Tracker,
		logger:   cfg.Logger,
		status:   StatusIdle,
		progress: Progress{OverallStep: 1},
	}, nil
}

// ID returns the task ID, it is kept across resets.
func (t *Task) ID() string { return t.id }

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Message returns the message of the last run.
func (t *Task) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// Value returns the value returned by the last run.
func (t *Task) Value() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// IsCancelling returns true when cancellation was requested for the current run.
func (t *Task) IsCancelling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == StatusCancelling
}

// Start begins the execution asynchronously. The task must be idle.
// Cancelling ctx requests the cancellation of the run.
func (t *Task) Start(ctx context.Context, args any) error {
	t.mu.Lock()
	if t.status != StatusIdle {
		status := t.status
		t.mu.Unlock()
		return fmt.Errorf("could not start task %q in %s status: %w", t.name, status, model.ErrInvalidState)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.stopHook = context.AfterFunc(ctx, t.Cancel)
	notify := t.changes.bind(t.transitionLocked(StatusQueued))
	t.emitMu.Lock()
	t.mu.Unlock()
	notify()
	t.emitMu.Unlock()

	if t.tracker != nil {
		t.tracker.track(t)
	}

	go t.execute(runCtx, args)

	return nil
}

// Cancel requests a cooperative cancellation. It only has effect on queued or running tasks.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.status != StatusQueued && t.status != StatusRunning {
		t.mu.Unlock()
		return
	}

	notify := t.changes.bind(t.transitionLocked(StatusCancelling))
	cancel := t.cancel
	t.emitMu.Lock()
	t.mu.Unlock()
	notify()
	t.emitMu.Unlock()

	t.logger.Debugf("Cancellation requested")
	cancel()
}

// Reset returns a finished task to idle, clearing the state of the last run.
func (t *Task) Reset() error {
	t.mu.Lock()
	if !t.status.IsTerminal() {
		status := t.status
		t.mu.Unlock()
		return fmt.Errorf("could not reset task %q in %s status: %w", t.name, status, model.ErrInvalidState)
	}

	notify := t.changes.bind(t.transitionLocked(StatusIdle))
	t.message = ""
	t.value = nil
	t.progress = Progress{OverallStep: 1}
	t.emitMu.Lock()
	t.mu.Unlock()
	notify()
	t.emitMu.Unlock()

	return nil
}

// OnStarted subscribes to the started notification. The returned func unsubscribes.
func (t *Task) OnStarted(fn func(Started)) (unsubscribe func()) {
	return t.subscribe(func() func() { return t.started.add(fn) })
}

// OnEnded subscribes to the ended notification. The returned func unsubscribes.
func (t *Task) OnEnded(fn func(Ended)) (unsubscribe func()) {
	return t.subscribe(func() func() { return t.ended.add(fn) })
}

// OnStatus subscribes to status transitions. The returned func unsubscribes.
func (t *Task) OnStatus(fn func(StatusChange)) (unsubscribe func()) {
	return t.subscribe(func() func() { return t.changes.add(fn) })
}

// OnProgress subscribes to progress updates. The returned func unsubscribes.
func (t *Task) OnProgress(fn func(Progress)) (unsubscribe func()) {
	return t.subscribe(func() func() { return t.progSubs.add(fn) })
}

func (t *Task) subscribe(add func() func()) func() {
	t.mu.Lock()
	remove := add()
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			remove()
			t.mu.Unlock()
		})
	}
}

func (t *Task) execute(ctx context.Context, args any) {
	var res Result
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("Task panicked: %v", r)
			res = Failed("unexpected failure: %v", r)
		}
		t.finish(res)
	}()

	if !t.begin() {
		return
	}

	res = t.run(ctx, t, args)
}

func (t *Task) begin() bool {
	t.mu.Lock()
	if t.status == StatusCancelling {
		t.mu.Unlock()
		return false
	}

	notifyChange := t.changes.bind(t.transitionLocked(StatusRunning))
	notifyStarted := t.started.bind(Started{TaskID: t.id, Name: t.name})
	t.emitMu.Lock()
	t.mu.Unlock()
	notifyChange()
	notifyStarted()
	t.emitMu.Unlock()

	return true
}

func (t *Task) finish(res Result) {
	t.mu.Lock()

	final := res.Status
	switch {
	case t.status == StatusCancelling:
		final = StatusCancelled
	case final == "":
		final = StatusComplete
	case final != StatusComplete && final != StatusIncomplete && final != StatusError:
		res.Message = fmt.Sprintf("task returned a non final status %q", final)
		final = StatusError
	}

	notifyChange := t.changes.bind(t.transitionLocked(final))
	t.message = res.Message
	t.value = res.Value
	t.cancel()
	t.stopHook()
	notifyEnded := t.ended.bind(Ended{
		TaskID:  t.id,
		Name:    t.name,
		Status:  final,
		Message: res.Message,
		Value:   res.Value,
	})

	t.emitMu.Lock()
	t.mu.Unlock()

	if t.tracker != nil {
		t.tracker.untrack(t)
	}

	notifyChange()
	notifyEnded()
	t.emitMu.Unlock()

	t.logger.Debugf("Task ended with %s status", final)
}

// transitionLocked must be called with t.mu held. An invalid transition is a programming
// error on this package.
func (t *Task) transitionLocked(to Status) StatusChange {
	from := t.status
	if !CanTransition(from, to) {
		panic(fmt.Sprintf("task %q: invalid transition %s -> %s", t.name, from, to))
	}
	t.status = to
	return StatusChange{TaskID: t.id, From: from, To: to}
}

// registry is a subscription list, safe to use with the task mutex held.
type registry[T any] struct {
	next int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func (r *registry[T]) add(fn func(T)) (remove func()) {
	r.next++
	id := r.next
	r.subs = append(r.subs, subscription[T]{id: id, fn: fn})

	return func() {
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// bind must be called with the task mutex held, it captures the current subscribers
// and returns the func that notifies them. Removing a subscription never mutates the
// captured slice.
func (r *registry[T]) bind(v T) func() {
	subs := r.subs
	return func() {
		for _, s := range subs {
			s.fn(v)
		}
	}
}
