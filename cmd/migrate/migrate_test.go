package main

import (
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up() error         { return m.Called().Error(0) }
func (m *mockMigrator) Down() error       { return m.Called().Error(0) }
func (m *mockMigrator) Steps(n int) error { return m.Called(n).Error(0) }
func (m *mockMigrator) Force(v int) error { return m.Called(v).Error(0) }

func (m *mockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func TestRunAction(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		steps   int
		force   int
		setup   func(m *mockMigrator)
		wantErr bool
	}{
		{
			name:   "up all",
			action: "up",
			setup: func(m *mockMigrator) {
				m.On("Up").Return(nil)
				m.On("Version").Return(uint(1), false, nil)
			},
		},
		{
			name:   "up with no change is not an error",
			action: "up",
			setup: func(m *mockMigrator) {
				m.On("Up").Return(migrate.ErrNoChange)
				m.On("Version").Return(uint(1), false, nil)
			},
		},
		{
			name:   "down steps",
			action: "down",
			steps:  1,
			setup: func(m *mockMigrator) {
				m.On("Steps", -1).Return(nil)
				m.On("Version").Return(uint(0), false, migrate.ErrNilVersion)
			},
		},
		{
			name:   "version only",
			action: "version",
			setup: func(m *mockMigrator) {
				m.On("Version").Return(uint(1), true, nil)
			},
		},
		{
			name:    "force without version",
			action:  "force",
			force:   -1,
			setup:   func(m *mockMigrator) {},
			wantErr: true,
		},
		{
			name:    "unknown action",
			action:  "sideways",
			setup:   func(m *mockMigrator) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockMigrator{}
			tt.setup(m)

			err := runAction(m, tt.action, tt.steps, tt.force)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			assert.NoError(t, err)
			m.AssertExpectations(t)
		})
	}
}
