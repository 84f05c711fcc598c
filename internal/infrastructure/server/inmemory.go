package server

import (
	"context"
	"sync"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

// InMemoryToolRepository implements a ToolRepository holding the catalog
// as a whole snapshot. ReplaceAll swaps the snapshot under the write
// lock, so readers racing a rebuild see either the prior or the new
// catalog, never a partial one.
type InMemoryToolRepository struct {
	mu    sync.RWMutex
	tools []shared.Tool
	index map[string]int
}

// NewInMemoryToolRepository creates a new InMemoryToolRepository.
func NewInMemoryToolRepository() *InMemoryToolRepository {
	return &InMemoryToolRepository{
		index: make(map[string]int),
	}
}

// GetTool retrieves a tool descriptor by its name.
func (r *InMemoryToolRepository) GetTool(ctx context.Context, name string) (*shared.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, domain.NewToolNotFoundError(name)
	}
	tool := r.tools[i]
	return &tool, nil
}

// ListTools returns the current catalog snapshot.
func (r *InMemoryToolRepository) ListTools(ctx context.Context) ([]shared.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]shared.Tool, len(r.tools))
	copy(tools, r.tools)
	return tools, nil
}

// AddTool adds a single descriptor, replacing any prior descriptor with
// the same name.
func (r *InMemoryToolRepository) AddTool(ctx context.Context, tool shared.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[tool.Name]; ok {
		r.tools[i] = tool
		return nil
	}
	r.index[tool.Name] = len(r.tools)
	r.tools = append(r.tools, tool)
	return nil
}

// ReplaceAll atomically swaps the catalog for a new snapshot.
func (r *InMemoryToolRepository) ReplaceAll(ctx context.Context, tools []shared.Tool) error {
	next := make([]shared.Tool, len(tools))
	copy(next, tools)
	index := make(map[string]int, len(next))
	for i, tool := range next {
		index[tool.Name] = i
	}

	r.mu.Lock()
	r.tools = next
	r.index = index
	r.mu.Unlock()
	return nil
}

// InMemorySessionRepository implements a SessionRepository using
// in-memory storage.
type InMemorySessionRepository struct {
	sessions sync.Map
}

// NewInMemorySessionRepository creates a new InMemorySessionRepository.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{}
}

// GetSession retrieves a session by its ID.
func (r *InMemorySessionRepository) GetSession(ctx context.Context, id string) (*domain.ClientSession, error) {
	if session, ok := r.sessions.Load(id); ok {
		return session.(*domain.ClientSession), nil
	}
	return nil, domain.NewSessionNotFoundError(id)
}

// ListSessions returns all active sessions.
func (r *InMemorySessionRepository) ListSessions(ctx context.Context) ([]*domain.ClientSession, error) {
	var sessions []*domain.ClientSession
	r.sessions.Range(func(_, value interface{}) bool {
		sessions = append(sessions, value.(*domain.ClientSession))
		return true
	})
	return sessions, nil
}

// AddSession adds a new session to the repository. A second
// registration under an existing id is rejected.
func (r *InMemorySessionRepository) AddSession(ctx context.Context, session *domain.ClientSession) error {
	if _, loaded := r.sessions.LoadOrStore(session.ID, session); loaded {
		return ErrSessionExists
	}
	return nil
}

// DeleteSession removes a session from the repository.
func (r *InMemorySessionRepository) DeleteSession(ctx context.Context, id string) error {
	if _, ok := r.sessions.Load(id); !ok {
		return domain.NewSessionNotFoundError(id)
	}
	r.sessions.Delete(id)
	return nil
}
