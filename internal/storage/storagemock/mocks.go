// Package storagemock has testify mocks of the storage interfaces.
package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/storage"
)

// MockRepository is a mock of storage.Repository.
type MockRepository struct {
	mock.Mock
}

var _ storage.Repository = &MockRepository{}

func (m *MockRepository) CreateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockRepository) ListInstalledItems(ctx context.Context, modeID string) ([]model.InstalledItem, error) {
	args := m.Called(ctx, modeID)
	if v := args.Get(0); v != nil {
		return v.([]model.InstalledItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpdateInstalledItem(ctx context.Context, item model.InstalledItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockRepository) DeleteInstalledItem(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) DeleteModeItems(ctx context.Context, modeID string) error {
	args := m.Called(ctx, modeID)
	return args.Error(0)
}
