// Package tokenstore holds the process-local TokenStore and the encrypting
// decorator used in front of any TokenStore.
package tokenstore

import (
	"context"
	"slices"
	"sync"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

// Memory keeps the session for the lifetime of the process only.
type Memory struct {
	mu    sync.RWMutex
	token string
	roles []domain.Role
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

var _ ports.TokenStore = (*Memory)(nil)

func (m *Memory) LoadToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) SaveToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) LoadRoles(context.Context) ([]domain.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.roles), nil
}

func (m *Memory) SaveRoles(_ context.Context, roles []domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = slices.Clone(roles)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.roles = nil
	return nil
}
