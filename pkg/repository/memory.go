package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/sahayak/pkg/model"
)

// Memory implements SessionStore in process memory
type Memory struct {
	mu sync.Mutex
	id model.SessionID
}

// NewMemory creates an empty in-memory session store
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) GetSessionID(ctx context.Context) (model.SessionID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, m.id != "", nil
}

func (m *Memory) PutSessionID(ctx context.Context, id model.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

func (m *Memory) DeleteSessionID(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	return nil
}
