// Package pipeline runs the ordered initialization stages of a game mode, from resolving
// its installation to accepting the commands of other launches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/modkeeper/internal/auth"
	"github.com/slok/modkeeper/internal/bridge"
	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/metrics"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/storage"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
)

// JournalOperation is the journal operation of the initialization of a game mode.
const JournalOperation = "startup"

// UI is the user interface used by the stages.
type UI interface {
	ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error
	ResolveInstallationPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error)
	FirstRunSetup(ctx context.Context, mode model.GameMode) error
	ConfirmMakeWritable(ctx context.Context, path string) (ui.MakeWritableAnswer, error)
	Login(ctx context.Context, reason string) (model.Credentials, error)
	ShowProgress(p task.Progress)
}

// SettingsStore persists the user settings.
type SettingsStore interface {
	Get() settings.Settings
	Update(ctx context.Context, mutate func(s *settings.Settings) error) error
	UpdateMode(ctx context.Context, modeID string, mutate func(m *settings.ModeSettings)) error
}

// ModeBuilder binds a game mode to its installation.
type ModeBuilder interface {
	BuildRuntimeMode(ctx context.Context, mode model.GameMode, installPath string) (*model.RuntimeMode, string, error)
}

// AccessChecker checks write access on paths, failing with model.ErrPrivilege.
type AccessChecker interface {
	Check(ctx context.Context, path string) error
}

// CommandQueue holds the commands received before the application was ready.
type CommandQueue interface {
	Ready(ctx context.Context, downloads ui.Downloads) (flushed int, err error)
}

// Services are the long lived services opened by the pipeline.
type Services struct {
	Repository storage.Repository
	Journal    task.Journal
	// Close releases the services, can be nil.
	Close func() error
}

// ServicesFactory opens the services.
type ServicesFactory func(ctx context.Context) (*Services, error)

// RepositoryFactory returns the repository client for a URL, empty means offline.
type RepositoryFactory func(url string) (auth.Client, error)

// DownloadsFactory returns the download queue of a directory.
type DownloadsFactory func(dir string) (ui.Downloads, error)

// EventStatus is the status of a stage event.
type EventStatus string

const (
	StageStarted EventStatus = "started"
	StageEnded   EventStatus = "ended"
)

// StageEvent is sent when a stage starts and ends.
type StageEvent struct {
	Ordinal int
	Name    string
	Status  EventStatus
	// Err is the stage error of ended events.
	Err      error
	Kind     Kind
	Duration time.Duration
}

// Result is the outcome of a successful initialization.
type Result struct {
	Runtime     *model.RuntimeMode
	Credentials model.Credentials
	Repository  auth.Client
	Services    *Services
	Reconciled  ReconcileStats
	Flushed     int
	// Interrupted is the stage where the previous initialization was interrupted, if any.
	Interrupted string
}

// Config is the configuration of the pipeline.
type Config struct {
	Descriptor   model.Descriptor
	UI           UI
	Settings     SettingsStore
	Builder      ModeBuilder
	Access       AccessChecker
	Repositories RepositoryFactory
	// RepositoryURL overrides the settings repository URL.
	RepositoryURL string
	Services      ServicesFactory
	Commands      CommandQueue
	Downloads     DownloadsFactory
	Tracker       *task.Tracker
	Now           func() time.Time
	Logger        log.Logger
}

func (c *Config) defaults() error {
	if err := c.Descriptor.Mode.Validate(); err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}
	if c.UI == nil {
		return fmt.Errorf("ui is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("settings is required")
	}
	if c.Builder == nil {
		return fmt.Errorf("builder is required")
	}
	if c.Access == nil {
		return fmt.Errorf("access checker is required")
	}
	if c.Services == nil {
		return fmt.Errorf("services factory is required")
	}
	if c.Commands == nil {
		return fmt.Errorf("command queue is required")
	}
	if c.Downloads == nil {
		return fmt.Errorf("downloads factory is required")
	}
	if c.Repositories == nil {
		c.Repositories = func(url string) (auth.Client, error) {
			if url == "" {
				return auth.OfflineClient{}, nil
			}
			return auth.NewHTTPClient(auth.HTTPClientConfig{URL: url, Logger: c.Logger})
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pipeline.Pipeline", "mode": c.Descriptor.Mode.ID})
	return nil
}

// Pipeline initializes a game mode. A pipeline runs once.
type Pipeline struct {
	cfg    Config
	stages []stage
	logger log.Logger

	mu        sync.Mutex
	observers registry
}

// New returns a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
	p.stages = p.canonicalStages()
	p.OnStage(p.observeStage)

	return p, nil
}

// StageNames returns the stage names in execution order.
func StageNames() []string {
	p := &Pipeline{}
	stages := p.canonicalStages()
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.name)
	}
	return names
}

// OnStage subscribes to the stage events, they are sent in order from the pipeline worker.
// The returned func unsubscribes.
func (p *Pipeline) OnStage(fn func(StageEvent)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	remove := p.observers.add(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			remove()
		})
	}
}

// observeStage records the metrics of the ended stages.
func (p *Pipeline) observeStage(e StageEvent) {
	if e.Status != StageEnded {
		p.logger.Debugf("Stage %d %s started", e.Ordinal, e.Name)
		return
	}

	metrics.StageDuration.WithLabelValues(e.Name).Observe(e.Duration.Seconds())
	metrics.StageOutcomes.WithLabelValues(e.Name, string(e.Kind)).Inc()
	p.logger.Debugf("Stage %d %s ended (%s) in %s", e.Ordinal, e.Name, e.Kind, e.Duration)
}

func (p *Pipeline) emit(e StageEvent) {
	p.mu.Lock()
	subs := p.observers.subs
	p.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Run runs every stage in order on a dedicated worker and blocks until it ends. The first
// failing stage aborts the run, its error can be classified with Classify. Cancelling ctx
// aborts with model.ErrUserCancelled.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	st := &state{}

	top, err := task.New(task.TaskConfig{
		Name:    "initialize-" + p.cfg.Descriptor.Mode.ID,
		Tracker: p.cfg.Tracker,
		Logger:  p.logger,
		Run: func(ctx context.Context, t *task.Task, _ any) task.Result {
			t.SetOverallMax(len(p.stages))
			for i, s := range p.stages {
				if err := p.runStage(ctx, t, i+1, s, st); err != nil {
					return task.Result{Status: task.StatusError, Message: err.Error(), Value: err}
				}
			}
			return task.Completed(nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create initialization task: %w", err)
	}

	unsubscribe := top.OnProgress(p.cfg.UI.ShowProgress)
	defer unsubscribe()

	ended, err := bridge.StartAndWait(ctx, top, nil)
	if err == nil {
		err = endedErr(ended)
	}
	if err != nil {
		p.abort(st, err)
		return nil, err
	}

	p.complete(st)
	return st.result(), nil
}

func (p *Pipeline) runStage(ctx context.Context, top *task.Task, ordinal int, s stage, st *state) error {
	top.SetOverallMessage(s.title)

	start := p.cfg.Now()
	stageTask, err := task.New(task.TaskConfig{
		Name:    s.name,
		Tracker: p.cfg.Tracker,
		Logger:  p.logger,
		Run: func(ctx context.Context, t *task.Task, _ any) task.Result {
			if err := s.run(ctx, t, st); err != nil {
				return task.Result{Status: task.StatusError, Message: err.Error(), Value: err}
			}
			return task.Completed(nil)
		},
	})
	if err == nil {
		// The stage starts when its task does.
		unsubscribe := stageTask.OnStarted(func(task.Started) {
			p.emit(StageEvent{Ordinal: ordinal, Name: s.name, Status: StageStarted})
		})
		defer unsubscribe()

		var ended task.Ended
		ended, err = bridge.StartAndWait(ctx, stageTask, nil)
		if err == nil {
			err = endedErr(ended)
		}
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", s.name, err)
	}

	duration := p.cfg.Now().Sub(start)
	kind := Classify(err)
	p.journalStage(ctx, st, s.name, err)

	p.emit(StageEvent{Ordinal: ordinal, Name: s.name, Status: StageEnded, Err: err, Kind: kind, Duration: duration})

	if err != nil {
		return err
	}
	top.StepOverallProgress()
	return nil
}

// endedErr returns the error of a finished task.
func endedErr(e task.Ended) error {
	switch e.Status {
	case task.StatusComplete:
		return nil
	case task.StatusCancelled:
		return model.ErrUserCancelled
	}

	if err, ok := e.Value.(error); ok {
		return err
	}
	if e.Message != "" {
		return errors.New(e.Message)
	}
	return fmt.Errorf("task %s ended with %s status", e.Name, e.Status)
}

// journalStage records the stage outcome once the journal is open.
func (p *Pipeline) journalStage(ctx context.Context, st *state, name string, stageErr error) {
	if st.services == nil || st.services.Journal == nil {
		return
	}
	j := st.services.Journal
	modeID := p.cfg.Descriptor.Mode.ID

	step, err := j.NextStep(ctx, modeID, JournalOperation)
	if err != nil || step == nil {
		return
	}
	if step.Name != name {
		p.logger.Warningf("Journal out of sync, expected %s got %s", name, step.Name)
		return
	}

	if stageErr != nil {
		err = j.FailStep(ctx, step.ID, stageErr)
	} else {
		err = j.CompleteStep(ctx, step.ID)
	}
	if err != nil {
		p.logger.Warningf("Could not journal stage %s: %s", name, err)
	}
}

// complete clears the journal of a successful initialization.
func (p *Pipeline) complete(st *state) {
	if st.services == nil || st.services.Journal == nil {
		return
	}
	if err := st.services.Journal.ClearOperation(context.Background(), p.cfg.Descriptor.Mode.ID, JournalOperation); err != nil {
		p.logger.Warningf("Could not clear the initialization journal: %s", err)
	}
}

// abort releases what the failed initialization opened.
func (p *Pipeline) abort(st *state, err error) {
	p.logger.Infof("Initialization aborted (%s): %s", Classify(err), err)
	if st.services != nil && st.services.Close != nil {
		if cerr := st.services.Close(); cerr != nil {
			p.logger.Warningf("Could not close services: %s", cerr)
		}
	}
}

type observer struct {
	id int
	fn func(StageEvent)
}

type registry struct {
	next int
	subs []observer
}

func (r *registry) add(fn func(StageEvent)) func() {
	r.next++
	id := r.next
	r.subs = append(r.subs, observer{id: id, fn: fn})
	return func() {
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}
