// Package startupmock has testify mocks of the startup collaborators.
package startupmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/app/startup"
	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/pipeline"
	"github.com/slok/modkeeper/internal/ui"
)

// MockShell is a mock of startup.Shell.
type MockShell struct {
	mock.Mock
}

var _ startup.Shell = &MockShell{}

func (m *MockShell) Execute(ctx context.Context, cmd model.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *MockShell) SelectMode(ctx context.Context, ds []model.Descriptor) (string, error) {
	args := m.Called(ctx, ds)
	return args.String(0), args.Error(1)
}

func (m *MockShell) ShowMessage(ctx context.Context, level ui.MessageLevel, title, msg string) error {
	args := m.Called(ctx, level, title, msg)
	return args.Error(0)
}

func (m *MockShell) SetMode(modeID string) int {
	args := m.Called(modeID)
	return args.Int(0)
}

func (m *MockShell) Unready() {
	m.Called()
}

// MockPipeline is a mock of startup.Pipeline.
type MockPipeline struct {
	mock.Mock
}

var _ startup.Pipeline = &MockPipeline{}

func (m *MockPipeline) Run(ctx context.Context) (*pipeline.Result, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*pipeline.Result), args.Error(1)
	}
	return nil, args.Error(1)
}
