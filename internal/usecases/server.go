// Package usecases implements the application logic for the MCP server:
// the tool catalog, tool execution, and session bookkeeping.
package usecases

import (
	"context"
	"sort"
	"sync"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/logging"
)

// ToolExecutor is implemented by each tool the server offers. Definition
// supplies the catalog descriptor; Call runs the tool. Executor failures
// are reported to the caller as ordinary errors and never become
// protocol-level faults.
type ToolExecutor interface {
	// Definition returns the tool's catalog descriptor.
	Definition() shared.Tool

	// Call executes the tool with the given arguments.
	Call(ctx context.Context, args map[string]interface{}) ([]shared.Content, error)
}

// ServerService implements the core server functionality.
type ServerService struct {
	serverInfo  shared.ServerInfo
	toolRepo    domain.ToolRepository
	sessionRepo domain.SessionRepository
	notifier    domain.NotificationSender
	logger      *logging.Logger

	mu        sync.RWMutex
	executors map[string]ToolExecutor
}

// NewServerService creates a new server service.
func NewServerService(
	serverInfo shared.ServerInfo,
	toolRepo domain.ToolRepository,
	sessionRepo domain.SessionRepository,
	notifier domain.NotificationSender,
	logger *logging.Logger,
) *ServerService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ServerService{
		serverInfo:  serverInfo,
		toolRepo:    toolRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		logger:      logger,
		executors:   make(map[string]ToolExecutor),
	}
}

// ServerInfo returns the server's name and version.
func (s *ServerService) ServerInfo() shared.ServerInfo {
	return s.serverInfo
}

// Capabilities returns the capability set advertised on initialize.
func (s *ServerService) Capabilities() shared.Capabilities {
	return shared.Capabilities{
		Tools: &shared.ToolsCapability{ListChanged: true},
	}
}

// RegisterExecutor registers a tool executor. Registering a second
// executor under the same name replaces the first. The catalog picks up
// the change on its next refresh.
func (s *ServerService) RegisterExecutor(executor ToolExecutor) {
	name := executor.Definition().Name

	s.mu.Lock()
	s.executors[name] = executor
	s.mu.Unlock()

	s.logger.Info("registered tool executor", logging.Fields{"tool": name})
}

// RefreshCatalog rebuilds the tool catalog from the registered executors
// and broadcasts a list-changed notification to every session. Broadcast
// failures are logged and do not fail the refresh.
func (s *ServerService) RefreshCatalog(ctx context.Context) error {
	s.mu.RLock()
	tools := make([]shared.Tool, 0, len(s.executors))
	for _, executor := range s.executors {
		tools = append(tools, executor.Definition())
	}
	s.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	if err := s.toolRepo.ReplaceAll(ctx, tools); err != nil {
		return err
	}

	notification := &domain.Notification{Method: shared.NotificationToolsListChanged}
	if err := s.notifier.BroadcastNotification(ctx, notification); err != nil {
		s.logger.Warn("list-changed broadcast incomplete", logging.Fields{
			"error": err.Error(),
		})
	}
	return nil
}

// ListTools returns the current catalog snapshot.
func (s *ServerService) ListTools(ctx context.Context) ([]shared.Tool, error) {
	return s.toolRepo.ListTools(ctx)
}

// CallTool executes the named tool. An unknown name yields a
// ToolNotFoundError.
func (s *ServerService) CallTool(ctx context.Context, name string, args map[string]interface{}) ([]shared.Content, error) {
	s.mu.RLock()
	executor, ok := s.executors[name]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.NewToolNotFoundError(name)
	}
	return executor.Call(ctx, args)
}

// RegisterSession records an established session.
func (s *ServerService) RegisterSession(ctx context.Context, session *domain.ClientSession) error {
	return s.sessionRepo.AddSession(ctx, session)
}

// UnregisterSession removes a session's record.
func (s *ServerService) UnregisterSession(ctx context.Context, id string) error {
	return s.sessionRepo.DeleteSession(ctx, id)
}

// GetSession retrieves a session's record.
func (s *ServerService) GetSession(ctx context.Context, id string) (*domain.ClientSession, error) {
	return s.sessionRepo.GetSession(ctx, id)
}
