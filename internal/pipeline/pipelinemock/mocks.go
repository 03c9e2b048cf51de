// Package pipelinemock has testify mocks of the pipeline collaborators.
package pipelinemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/task"
	"github.com/slok/modkeeper/internal/ui"
)

// MockUI is a mock of pipeline.UI.
type MockUI struct {
	mock.Mock
}

var _ pipeline.UI = &MockUI{}

func (m *MockUI) ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error {
	args := m.Called(ctx, level, title, msg)
	return args.Error(0)
}

func (m *MockUI) ResolveInstallationPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error) {
	args := m.Called(ctx, d, defaultPath)
	return args.String(0), args.Error(1)
}

func (m *MockUI) FirstRunSetup(ctx context.Context, mode model.GameMode) error {
	args := m.Called(ctx, mode)
	return args.Error(0)
}

func (m *MockUI) ConfirmMakeWritable(ctx context.Context, path string) (ui.MakeWritableAnswer, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(ui.MakeWritableAnswer), args.Error(1)
}

func (m *MockUI) Login(ctx context.Context, reason string) (model.Credentials, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(model.Credentials), args.Error(1)
}

// ShowProgress isn't recorded, progress is rendered many times.
func (m *MockUI) ShowProgress(p task.Progress) {}

// MockAccessChecker is a mock of pipeline.AccessChecker.
type MockAccessChecker struct {
	mock.Mock
}

var _ pipeline.AccessChecker = &MockAccessChecker{}

func (m *MockAccessChecker) Check(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// MockCommandQueue is a mock of pipeline.CommandQueue.
type MockCommandQueue struct {
	mock.Mock
}

var _ pipeline.CommandQueue = &MockCommandQueue{}

func (m *MockCommandQueue) Ready(ctx context.Context, downloads ui.Downloads) (int, error) {
	args := m.Called(ctx, downloads)
	return args.Int(0), args.Error(1)
}
