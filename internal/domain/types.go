// Package domain defines the core entities and contracts for the
// pg-schema MCP server.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClientSession represents an established client session. Session ids
// come from a cryptographically strong random source and are never
// reused for the life of the process.
type ClientSession struct {
	ID        string
	UserAgent string
	CreatedAt time.Time
}

// NewClientSession creates a new ClientSession with a freshly generated id.
func NewClientSession(userAgent string) *ClientSession {
	return &ClientSession{
		ID:        uuid.New().String(),
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// Notification represents a push message destined for one or all sessions.
type Notification struct {
	Method string
	Params map[string]interface{}
}
