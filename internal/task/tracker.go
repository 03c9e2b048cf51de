package task

import (
	"sort"
	"sync"

	"github.com/slok/modkeeper/internal/log"
)

// Tracker keeps the tasks that are alive so they can be terminated when the process
// tears down.
type Tracker struct {
	mu     sync.Mutex
	live   map[string]*Task
	logger log.Logger
}

// NewTracker returns a new tracker.
func NewTracker(logger log.Logger) *Tracker {
	if logger == nil {
		logger = log.Noop
	}

	return &Tracker{
		live:   map[string]*Task{},
		logger: logger.WithValues(log.Kv{"svc": "task.Tracker"}),
	}
}

func (t *Tracker) track(tk *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[tk.ID()] = tk
}

func (t *Tracker) untrack(tk *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, tk.ID())
}

// Live returns the tasks that have been started and have not ended, sorted by name.
func (t *Tracker) Live() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	tasks := make([]*Task, 0, len(t.live))
	for _, tk := range t.live {
		tasks = append(tasks, tk)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name() < tasks[j].Name() })

	return tasks
}

// Abandon requests the cancellation of every live task and logs them as abnormally
// terminated. The process exit terminates their goroutines.
func (t *Tracker) Abandon() int {
	tasks := t.Live()
	for _, tk := range tasks {
		t.logger.Errorf("Task %q (%s) still alive at teardown in %s status, terminating abnormally", tk.Name(), tk.ID(), tk.Status())
		tk.Cancel()
	}
	return len(tasks)
}
