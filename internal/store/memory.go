package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Memory is an in-process Store used when no database is configured and in
// tests.
type Memory struct {
	mu      sync.RWMutex
	tables  map[string]TableRow
	hands   map[string]HandRow
	players map[string][]HandPlayerRow
	actions map[string][]ActionRow
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string]TableRow),
		hands:   make(map[string]HandRow),
		players: make(map[string][]HandPlayerRow),
		actions: make(map[string][]ActionRow),
	}
}

func (m *Memory) SaveTable(_ context.Context, row TableRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.Seats = slices.Clone(row.Seats)
	m.tables[row.ID] = row
	return nil
}

func (m *Memory) LoadTable(_ context.Context, id string) (TableRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.tables[id]
	if !ok {
		return TableRow{}, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	row.Seats = slices.Clone(row.Seats)
	return row, nil
}

func (m *Memory) ListTables(_ context.Context) ([]TableRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TableRow, 0, len(m.tables))
	for _, row := range m.tables {
		row.Seats = slices.Clone(row.Seats)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveHand(_ context.Context, row HandRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands[row.ID] = row
	return nil
}

func (m *Memory) LoadHand(_ context.Context, id string) (HandRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.hands[id]
	if !ok {
		return HandRow{}, fmt.Errorf("hand %s: %w", id, ErrNotFound)
	}
	return row, nil
}

func (m *Memory) SaveHandPlayers(_ context.Context, handID string, rows []HandPlayerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[handID] = slices.Clone(rows)
	return nil
}

func (m *Memory) LoadHandPlayers(_ context.Context, handID string) ([]HandPlayerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.players[handID]), nil
}

func (m *Memory) AppendAction(_ context.Context, row ActionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions[row.HandID] {
		if existing.Seq == row.Seq {
			// Retried write that already landed.
			return nil
		}
	}
	m.actions[row.HandID] = append(m.actions[row.HandID], row)
	return nil
}

func (m *Memory) LoadActions(_ context.Context, handID string) ([]ActionRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.actions[handID]), nil
}

func (m *Memory) Close() {}
