// Package ipcmock has testify mocks of the ipc collaborators.
package ipcmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/ipc"
	"github.com/slok/modkeeper/internal/model"
)

// MockSink is a mock of ipc.Sink.
type MockSink struct {
	mock.Mock
}

var _ ipc.Sink = &MockSink{}

func (m *MockSink) Execute(ctx context.Context, cmd model.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}
