package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/modkeeper/internal/auth"
	"github.com/slok/modkeeper/internal/bridge"
	"github.com/slok/modkeeper/internal/gamemode"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/settings"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
)

// Stage names in execution order.
const (
	StageResolveInstallPath  = "resolve-install-path"
	StageCheckInstallAccess  = "check-install-access"
	StageFirstRunSetup       = "first-run-setup"
	StageInitMode            = "init-mode"
	StageBuildMode           = "build-mode"
	StageCheckDataAccess     = "check-data-access"
	StageCreateDataDirs      = "create-data-dirs"
	StageUnlockReadOnlyFiles = "unlock-readonly-files"
	StageRepositoryClient    = "repository-client"
	StageAuthenticate        = "authenticate"
	StageServices            = "services"
	StageReconcileInstalled  = "reconcile-installed"
	StageFlushQueue          = "flush-queue"
)

const maxLoginAttempts = 3

type stage struct {
	name  string
	title string
	run   func(ctx context.Context, t *task.Task, st *state) error
}

// state is shared by the stages, only the pipeline worker touches it.
type state struct {
	installPath string
	runtime     *model.RuntimeMode
	repository  auth.Client
	credentials model.Credentials
	services    *Services
	reconciled  ReconcileStats
	flushed     int
	interrupted string
}

func (s *state) result() *Result {
	return &Result{
		Runtime:     s.runtime,
		Credentials: s.credentials,
		Repository:  s.repository,
		Services:    s.services,
		Reconciled:  s.reconciled,
		Flushed:     s.flushed,
		Interrupted: s.interrupted,
	}
}

func (p *Pipeline) canonicalStages() []stage {
	return []stage{
		{name: StageResolveInstallPath, title: "Looking for the game installation", run: p.resolveInstallPath},
		{name: StageCheckInstallAccess, title: "Checking the game installation access", run: p.checkInstallAccess},
		{name: StageFirstRunSetup, title: "Setting up", run: p.firstRunSetup},
		{name: StageInitMode, title: "Initializing the game mode", run: p.initMode},
		{name: StageBuildMode, title: "Preparing the game mode", run: p.buildMode},
		{name: StageCheckDataAccess, title: "Checking the data folders access", run: p.checkDataAccess},
		{name: StageCreateDataDirs, title: "Creating the data folders", run: p.createDataDirs},
		{name: StageUnlockReadOnlyFiles, title: "Checking read-only files", run: p.unlockReadOnlyFiles},
		{name: StageRepositoryClient, title: "Connecting to the repository", run: p.repositoryClient},
		{name: StageAuthenticate, title: "Logging in", run: p.authenticate},
		{name: StageServices, title: "Starting services", run: p.services},
		{name: StageReconcileInstalled, title: "Scanning installed items", run: p.reconcileInstalled},
		{name: StageFlushQueue, title: "Processing pending requests", run: p.flushQueue},
	}
}

func (p *Pipeline) modeID() string { return p.cfg.Descriptor.Mode.ID }

func (p *Pipeline) resolveInstallPath(ctx context.Context, _ *task.Task, st *state) error {
	defaultPath := p.cfg.Settings.Get().Mode(p.modeID()).InstallPath
	if defaultPath == "" {
		defaultPath = detectInstallPath(p.cfg.Descriptor)
	}

	path, err := p.cfg.UI.ResolveInstallationPath(ctx, p.cfg.Descriptor, defaultPath)
	if err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return model.ErrUserCancelled
	}
	path = expandHome(path)

	err = p.cfg.Settings.UpdateMode(ctx, p.modeID(), func(m *settings.ModeSettings) { m.InstallPath = path })
	if err != nil {
		return fmt.Errorf("could not remember the install path: %w", err)
	}
	st.installPath = path

	return nil
}

func (p *Pipeline) checkInstallAccess(ctx context.Context, _ *task.Task, st *state) error {
	return p.cfg.Access.Check(ctx, st.installPath)
}

func (p *Pipeline) firstRunSetup(ctx context.Context, _ *task.Task, st *state) error {
	if p.cfg.Settings.Get().Mode(p.modeID()).SetupCompleted {
		return nil
	}

	if err := p.cfg.UI.FirstRunSetup(ctx, p.cfg.Descriptor.Mode); err != nil {
		return err
	}

	return p.cfg.Settings.UpdateMode(ctx, p.modeID(), func(m *settings.ModeSettings) { m.SetupCompleted = true })
}

func (p *Pipeline) initMode(ctx context.Context, _ *task.Task, st *state) error {
	info, err := os.Stat(st.installPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s installation folder %s doesn't exist: %w", p.cfg.Descriptor.Mode.Name, st.installPath, model.ErrConfiguration)
	}

	found, err := containsFile(st.installPath, p.cfg.Descriptor.Executable)
	if err != nil {
		return fmt.Errorf("could not read the installation folder: %w", err)
	}
	if !found {
		return fmt.Errorf("%s not found in %s, it doesn't look like a %s installation: %w", p.cfg.Descriptor.Executable, st.installPath, p.cfg.Descriptor.Mode.Name, model.ErrConfiguration)
	}

	return nil
}

func (p *Pipeline) buildMode(ctx context.Context, _ *task.Task, st *state) error {
	rm, warning, err := p.cfg.Builder.BuildRuntimeMode(ctx, p.cfg.Descriptor.Mode, st.installPath)
	if err != nil {
		return err
	}
	st.runtime = rm

	if warning != "" {
		if err := p.cfg.UI.ShowMessage(ctx, ui.MessageWarning, p.cfg.Descriptor.Mode.Name, warning); err != nil {
			p.logger.Warningf("Could not show the game mode warning: %s", err)
		}
	}

	return nil
}

func (p *Pipeline) checkDataAccess(ctx context.Context, _ *task.Task, st *state) error {
	for _, dp := range st.runtime.DataPaths {
		if err := p.cfg.Access.Check(ctx, dp.Path); err != nil {
			return fmt.Errorf("%s folder: %w", dp.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) createDataDirs(ctx context.Context, _ *task.Task, st *state) error {
	for _, dp := range st.runtime.DataPaths {
		if err := os.MkdirAll(dp.Path, 0755); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return fmt.Errorf("could not create %s: %w", dp.Path, errors.Join(model.ErrPrivilege, err))
			}
			return fmt.Errorf("could not create %s: %w", dp.Path, err)
		}
	}
	return nil
}

func (p *Pipeline) unlockReadOnlyFiles(ctx context.Context, t *task.Task, st *state) error {
	for _, dp := range st.runtime.DataPaths {
		files, err := readOnlyFiles(ctx, dp.Path)
		if err != nil {
			return fmt.Errorf("could not scan %s: %w", dp.Path, err)
		}
		if len(files) == 0 {
			continue
		}

		agree, err := p.makeWritableAnswer(ctx, dp.Path)
		if err != nil {
			return err
		}
		if !agree {
			p.logger.Warningf("%d read-only files kept in %s", len(files), dp.Path)
			continue
		}

		t.SetItemMax(len(files))
		t.SetItemMessage(dp.Path)
		for _, f := range files {
			if err := makeWritable(f); err != nil {
				return fmt.Errorf("could not make %s writable: %w", f, errors.Join(model.ErrPrivilege, err))
			}
			t.StepItemProgress()
		}
		p.logger.Infof("%d read-only files made writable in %s", len(files), dp.Path)
	}

	return nil
}

func (p *Pipeline) makeWritableAnswer(ctx context.Context, path string) (bool, error) {
	if remembered := p.cfg.Settings.Get().Mode(p.modeID()).MakeWritable; remembered != nil {
		return *remembered, nil
	}

	answer, err := p.cfg.UI.ConfirmMakeWritable(ctx, path)
	if err != nil {
		return false, err
	}

	if answer.Remember {
		agree := answer.Agree
		err := p.cfg.Settings.UpdateMode(ctx, p.modeID(), func(m *settings.ModeSettings) { m.MakeWritable = &agree })
		if err != nil {
			return false, fmt.Errorf("could not remember the answer: %w", err)
		}
	}

	return answer.Agree, nil
}

func (p *Pipeline) repositoryClient(ctx context.Context, _ *task.Task, st *state) error {
	url := p.cfg.RepositoryURL
	if url == "" {
		url = p.cfg.Settings.Get().Repository.URL
	}

	client, err := p.cfg.Repositories(url)
	if err != nil {
		return fmt.Errorf("could not create the repository client: %w", errors.Join(model.ErrConfiguration, err))
	}
	st.repository = client

	return nil
}

// authenticate validates the stored credentials in a task. A rejected validation ends
// incomplete, then the user logs in and the same task is reset and started again.
func (p *Pipeline) authenticate(ctx context.Context, _ *task.Task, st *state) error {
	repo := p.cfg.Settings.Get().Repository
	creds := model.Credentials{Username: repo.Username, Token: repo.Token}

	if _, offline := st.repository.(auth.OfflineClient); offline && creds.IsZero() {
		p.logger.Infof("No repository configured, continuing anonymously")
		return nil
	}

	validate, err := task.New(task.TaskConfig{
		Name:    "validate-credentials",
		Tracker: p.cfg.Tracker,
		Logger:  p.logger,
		Run: func(ctx context.Context, t *task.Task, args any) task.Result {
			validated, err := st.repository.Validate(ctx, args.(model.Credentials))
			switch {
			case err == nil:
				return task.Completed(validated)
			case errors.Is(err, model.ErrAuthRejected):
				return task.Unfinished("%s", err)
			}
			return task.Result{Status: task.StatusError, Message: err.Error(), Value: err}
		},
	})
	if err != nil {
		return fmt.Errorf("could not create the validation task: %w", err)
	}

	for attempt := 1; ; attempt++ {
		ended, err := bridge.StartAndWait(ctx, validate, creds)
		if err != nil {
			return err
		}

		switch ended.Status {
		case task.StatusComplete:
			validated := ended.Value.(model.Credentials)
			st.credentials = validated
			return p.cfg.Settings.Update(ctx, func(s *settings.Settings) error {
				s.Repository.Username = validated.Username
				s.Repository.Token = validated.Token
				return nil
			})
		case task.StatusCancelled:
			return model.ErrUserCancelled
		case task.StatusError:
			return endedErr(ended)
		}

		// Incomplete.
		if attempt >= maxLoginAttempts {
			return fmt.Errorf("%s: %w", ended.Message, model.ErrAuthRejected)
		}

		creds, err = p.cfg.UI.Login(ctx, ended.Message)
		if err != nil {
			return err
		}

		if err := validate.Reset(); err != nil {
			return fmt.Errorf("could not reset the validation task: %w", err)
		}
	}
}

func (p *Pipeline) services(ctx context.Context, _ *task.Task, st *state) error {
	svcs, err := p.cfg.Services(ctx)
	if err != nil {
		return fmt.Errorf("could not start services: %w", err)
	}
	st.services = svcs

	if svcs.Journal == nil {
		return nil
	}
	j := svcs.Journal
	modeID := p.modeID()

	op, pending, err := j.HasPendingOperation(ctx, modeID)
	if err != nil {
		return fmt.Errorf("could not read the journal: %w", err)
	}
	if pending && op == JournalOperation {
		steps, err := j.Steps(ctx, modeID, JournalOperation)
		if err != nil {
			return fmt.Errorf("could not read the journal: %w", err)
		}
		var lastEnded task.Step
		for _, s := range steps {
			if s.Status == task.StepStatusPending {
				st.interrupted = s.Name
				break
			}
			lastEnded = s
		}
		if lastEnded.FinishedAt.IsZero() {
			p.logger.Warningf("Previous initialization was interrupted at %q", st.interrupted)
		} else {
			p.logger.Warningf("Previous initialization was interrupted at %q, %s ended at %s", st.interrupted, lastEnded.Name, lastEnded.FinishedAt.Format(time.RFC3339))
		}
	}
	if err := j.ClearOperation(ctx, modeID, JournalOperation); err != nil {
		return fmt.Errorf("could not clear the journal: %w", err)
	}

	// The stages up to this one are journaled as done, this one is completed by the
	// pipeline when it returns.
	names := StageNames()
	if err := j.AddSteps(ctx, modeID, JournalOperation, names); err != nil {
		return fmt.Errorf("could not journal the initialization: %w", err)
	}
	for _, name := range names {
		if name == StageServices {
			break
		}
		step, err := j.NextStep(ctx, modeID, JournalOperation)
		if err != nil || step == nil {
			return fmt.Errorf("could not journal the initialization: %w", err)
		}
		if err := j.CompleteStep(ctx, step.ID); err != nil {
			return fmt.Errorf("could not journal the initialization: %w", err)
		}
	}

	return nil
}

func (p *Pipeline) reconcileInstalled(ctx context.Context, t *task.Task, st *state) error {
	stats, err := p.reconcile(ctx, t, st.services.Repository)
	if err != nil {
		return err
	}
	st.reconciled = stats
	return nil
}

func (p *Pipeline) flushQueue(ctx context.Context, _ *task.Task, st *state) error {
	modsDir, ok := st.runtime.DataPath(gamemode.DataPathMods)
	if !ok {
		return fmt.Errorf("runtime mode without %s folder: %w", gamemode.DataPathMods, model.ErrConfiguration)
	}

	downloads, err := p.cfg.Downloads(modsDir)
	if err != nil {
		return fmt.Errorf("could not open the download queue: %w", err)
	}

	n, err := p.cfg.Commands.Ready(ctx, downloads)
	if err != nil {
		return fmt.Errorf("could not process pending requests: %w", err)
	}
	st.flushed = n

	return nil
}

func detectInstallPath(d model.Descriptor) string {
	for _, p := range d.DefaultInstallPaths {
		p = expandHome(p)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
	}
	return ""
}

func expandHome(path string) string {
	if path == "~" {
		return homedir.HomeDir()
	}
	if strings.HasPrefix(path, "~"+string(filepath.Separator)) || strings.HasPrefix(path, "~/") {
		return filepath.Join(homedir.HomeDir(), path[2:])
	}
	return path
}

// containsFile looks for a file in a directory ignoring the name case.
func containsFile(dir, name string) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return true, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name) {
			return true, nil
		}
	}
	return false, nil
}

func readOnlyFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0200 == 0 {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func makeWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0200)
}
