// Package taskmock has testify mocks of the task interfaces.
package taskmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/task"
)

// MockJournal is a mock of task.Journal.
type MockJournal struct {
	mock.Mock
}

var _ task.Journal = &MockJournal{}

func (m *MockJournal) AddSteps(ctx context.Context, owner, operation string, names []string) error {
	args := m.Called(ctx, owner, operation, names)
	return args.Error(0)
}

func (m *MockJournal) NextStep(ctx context.Context, owner, operation string) (*task.Step, error) {
	args := m.Called(ctx, owner, operation)
	if v := args.Get(0); v != nil {
		return v.(*task.Step), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJournal) Steps(ctx context.Context, owner, operation string) ([]task.Step, error) {
	args := m.Called(ctx, owner, operation)
	if v := args.Get(0); v != nil {
		return v.([]task.Step), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJournal) CompleteStep(ctx context.Context, stepID string) error {
	args := m.Called(ctx, stepID)
	return args.Error(0)
}

func (m *MockJournal) FailStep(ctx context.Context, stepID string, err error) error {
	args := m.Called(ctx, stepID, err)
	return args.Error(0)
}

func (m *MockJournal) Progress(ctx context.Context, owner, operation string) (*task.JournalProgress, error) {
	args := m.Called(ctx, owner, operation)
	if v := args.Get(0); v != nil {
		return v.(*task.JournalProgress), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJournal) HasPendingOperation(ctx context.Context, owner string) (string, bool, error) {
	args := m.Called(ctx, owner)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockJournal) ClearOperation(ctx context.Context, owner, operation string) error {
	args := m.Called(ctx, owner, operation)
	return args.Error(0)
}
