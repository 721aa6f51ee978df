package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Memory is a Store that lives for the lifetime of the process.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*research.Session
	logs     map[uuid.UUID][]LogEntry
	nextLog  int
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*research.Session),
		logs:     make(map[uuid.UUID][]LogEntry),
	}
}

func (m *Memory) Create(ctx context.Context, s *research.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*research.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(s), nil
}

func (m *Memory) Save(ctx context.Context, s *research.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]research.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]research.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, *clone(s))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if len(sessions) > ListLimit {
		sessions = sessions[:ListLimit]
	}
	return sessions, nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	delete(m.logs, id)
	return nil
}

func (m *Memory) AppendLog(ctx context.Context, sessionID uuid.UUID, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	m.nextLog++
	entry.ID = m.nextLog
	m.logs[sessionID] = append(m.logs[sessionID], entry)
	return nil
}

func (m *Memory) Logs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return slices.Clone(m.logs[sessionID]), nil
}

func clone(s *research.Session) *research.Session {
	c := *s
	c.Questions.Items = slices.Clone(s.Questions.Items)
	c.Answers = slices.Clone(s.Answers)
	c.Plan.Queries = slices.Clone(s.Plan.Queries)
	c.CurrentQueries = slices.Clone(s.CurrentQueries)
	c.Collected = slices.Clone(s.Collected)
	return &c
}
