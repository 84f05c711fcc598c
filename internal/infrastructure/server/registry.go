package server

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/logging"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/metrics"
)

// SessionRegistry owns the id to transport-channel mapping. It is the
// only shared mutable state in the server; every mutation and every
// broadcast iteration goes through its mutex. It also implements
// domain.NotificationSender on top of the registered channels.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*StreamSession
	logger   *logging.Logger
	recorder *metrics.Recorder
}

// NewSessionRegistry creates an empty registry. The recorder may be nil.
func NewSessionRegistry(logger *logging.Logger, recorder *metrics.Recorder) *SessionRegistry {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionRegistry{
		sessions: make(map[string]*StreamSession),
		logger:   logger,
		recorder: recorder,
	}
}

// RegisterSession adds a session to the registry. A second registration
// under an existing id is rejected with ErrSessionExists; ids are never
// reused, so this only guards against misuse.
func (r *SessionRegistry) RegisterSession(session *StreamSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID()]; ok {
		return ErrSessionExists
	}
	r.sessions[session.ID()] = session

	if r.recorder != nil {
		r.recorder.SessionOpened()
	}
	return nil
}

// UnregisterSession removes a session and closes its channel. Removing
// an unknown id is a no-op.
func (r *SessionRegistry) UnregisterSession(sessionID string) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	session.Close()
	if r.recorder != nil {
		r.recorder.SessionClosed()
	}
}

// GetSession retrieves a session by its id.
func (r *SessionRegistry) GetSession(sessionID string) (*StreamSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session and empties the registry.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*StreamSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
		if r.recorder != nil {
			r.recorder.SessionClosed()
		}
	}
}

// snapshot returns the current sessions without holding the lock during
// delivery.
func (r *SessionRegistry) snapshot() []*StreamSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*StreamSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// SendNotification sends a notification to a specific session.
func (r *SessionRegistry) SendNotification(ctx context.Context, sessionID string, notification *domain.Notification) error {
	session, ok := r.GetSession(sessionID)
	if !ok {
		return domain.NewSessionNotFoundError(sessionID)
	}

	if err := session.Send(shared.NewNotification(notification.Method, notification.Params)); err != nil {
		return err
	}
	if r.recorder != nil {
		r.recorder.NotificationSent(notification.Method)
	}
	return nil
}

// BroadcastNotification sends a notification to every registered
// session, best-effort: failures are collected and returned but never
// stop delivery to the remaining sessions.
func (r *SessionRegistry) BroadcastNotification(ctx context.Context, notification *domain.Notification) error {
	msg := shared.NewNotification(notification.Method, notification.Params)

	var errs error
	for _, session := range r.snapshot() {
		if err := session.Send(msg); err != nil {
			r.logger.Warn("broadcast delivery failed", logging.Fields{
				"sessionID": session.ID(),
				"method":    notification.Method,
				"error":     err.Error(),
			})
			errs = multierr.Append(errs, err)
			continue
		}
		if r.recorder != nil {
			r.recorder.NotificationSent(notification.Method)
		}
	}
	return errs
}
