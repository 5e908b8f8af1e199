// Package mocks provides testify mock implementations shared across tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockOracle is a mock implementation of permissions.Oracle.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) HasPermission(ctx context.Context, userID, spaceID, permission string) (bool, error) {
	args := m.Called(ctx, userID, spaceID, permission)

	return args.Bool(0), args.Error(1)
}

func (m *MockOracle) IsSpaceAdmin(ctx context.Context, userID, spaceID string) (bool, error) {
	args := m.Called(ctx, userID, spaceID)

	return args.Bool(0), args.Error(1)
}
