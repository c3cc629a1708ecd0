package table

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager holds the tables served by this process.
type Manager struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

func NewManager() *Manager {
	return &Manager{tables: make(map[string]*Table)}
}

// Add registers a running table.
func (m *Manager) Add(t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.ID()]; ok {
		return fmt.Errorf("table %s already registered", t.ID())
	}
	m.tables[t.ID()] = t
	return nil
}

// Get returns the table with id.
func (m *Manager) Get(id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, id)
	}
	return t, nil
}

// List returns every table ordered by id.
func (m *Manager) List() []*Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Stop stops every table.
func (m *Manager) Stop(ctx context.Context) error {
	for _, t := range m.List() {
		if err := t.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
