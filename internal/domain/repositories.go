package domain

import (
	"context"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

// ToolRepository defines the interface for the tool catalog. Readers
// always observe a complete snapshot: a ReplaceAll that races with a
// ListTools yields either the prior or the new catalog, never a mix.
type ToolRepository interface {
	// GetTool retrieves a tool descriptor by its name.
	GetTool(ctx context.Context, name string) (*shared.Tool, error)

	// ListTools returns the current catalog snapshot.
	ListTools(ctx context.Context) ([]shared.Tool, error)

	// AddTool adds a single descriptor to the catalog.
	AddTool(ctx context.Context, tool shared.Tool) error

	// ReplaceAll atomically swaps the catalog for a new snapshot.
	ReplaceAll(ctx context.Context, tools []shared.Tool) error
}

// SessionRepository defines the interface for tracking established sessions.
type SessionRepository interface {
	// GetSession retrieves a session by its ID.
	GetSession(ctx context.Context, id string) (*ClientSession, error)

	// ListSessions returns all active sessions.
	ListSessions(ctx context.Context) ([]*ClientSession, error)

	// AddSession adds a new session. A second registration under an
	// existing id is rejected.
	AddSession(ctx context.Context, session *ClientSession) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, id string) error
}

// NotificationSender defines the interface for pushing notifications to
// connected sessions.
type NotificationSender interface {
	// SendNotification sends a notification to a specific session.
	SendNotification(ctx context.Context, sessionID string, notification *Notification) error

	// BroadcastNotification sends a notification to all connected
	// sessions, best-effort: one undeliverable session never blocks
	// the others.
	BroadcastNotification(ctx context.Context, notification *Notification) error
}
