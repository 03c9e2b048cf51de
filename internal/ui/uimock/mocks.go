// Package uimock has testify mocks of the ui collaborators.
package uimock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
)

// MockPresenter is a mock of ui.Presenter.
type MockPresenter struct {
	mock.Mock
}

var _ ui.Presenter = &MockPresenter{}

func (m *MockPresenter) ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error {
	args := m.Called(ctx, level, title, msg)
	return args.Error(0)
}

func (m *MockPresenter) AskInstallPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error) {
	args := m.Called(ctx, d, defaultPath)
	return args.String(0), args.Error(1)
}

func (m *MockPresenter) FirstRunSetup(ctx context.Context, mode model.GameMode) error {
	args := m.Called(ctx, mode)
	return args.Error(0)
}

func (m *MockPresenter) ConfirmMakeWritable(ctx context.Context, path string) (ui.MakeWritableAnswer, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(ui.MakeWritableAnswer), args.Error(1)
}

func (m *MockPresenter) Login(ctx context.Context, reason string) (model.Credentials, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(model.Credentials), args.Error(1)
}

func (m *MockPresenter) SelectMode(ctx context.Context, ds []model.Descriptor) (string, error) {
	args := m.Called(ctx, ds)
	return args.String(0), args.Error(1)
}

func (m *MockPresenter) ConfirmOverwrite(ctx context.Context, item model.ItemURI) (bool, error) {
	args := m.Called(ctx, item)
	return args.Bool(0), args.Error(1)
}

func (m *MockPresenter) ItemQueued(ctx context.Context, item model.ItemURI) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockPresenter) BringToFront(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPresenter) ShowProgress(ctx context.Context, p task.Progress) {
	m.Called(ctx, p)
}

// MockDownloads is a mock of ui.Downloads.
type MockDownloads struct {
	mock.Mock
}

var _ ui.Downloads = &MockDownloads{}

func (m *MockDownloads) Exists(ctx context.Context, item model.ItemURI) (bool, error) {
	args := m.Called(ctx, item)
	return args.Bool(0), args.Error(1)
}

func (m *MockDownloads) Enqueue(ctx context.Context, item model.ItemURI, replace bool) error {
	args := m.Called(ctx, item, replace)
	return args.Error(0)
}
