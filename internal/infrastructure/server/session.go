package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

// StreamSession is the transport channel for one established session:
// a single buffered outbound queue drained by at most one GET stream.
// Sends preserve order; after Close every send fails with
// ErrSessionClosed.
type StreamSession struct {
	id          string
	userAgent   string
	createdAt   time.Time
	outbound    chan shared.JSONRPCMessage
	done        chan struct{}
	closeOnce   sync.Once
	initialized atomic.Bool
	attached    atomic.Bool
}

// NewStreamSession creates a session with a freshly generated id and an
// outbound queue of the given capacity.
func NewStreamSession(userAgent string, bufferSize int) *StreamSession {
	return &StreamSession{
		id:        uuid.New().String(),
		userAgent: userAgent,
		createdAt: time.Now().UTC(),
		outbound:  make(chan shared.JSONRPCMessage, bufferSize),
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *StreamSession) ID() string {
	return s.id
}

// ClientSession returns the domain view of this session.
func (s *StreamSession) ClientSession() *domain.ClientSession {
	return &domain.ClientSession{
		ID:        s.id,
		UserAgent: s.userAgent,
		CreatedAt: s.createdAt,
	}
}

// Send queues an outbound message. It never blocks: a closed session
// yields ErrSessionClosed and a full queue yields ErrChannelFull.
func (s *StreamSession) Send(msg shared.JSONRPCMessage) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrChannelFull
	}
}

// Messages returns the outbound queue for the stream writer to drain.
func (s *StreamSession) Messages() <-chan shared.JSONRPCMessage {
	return s.outbound
}

// Done is closed when the session is torn down.
func (s *StreamSession) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down. Safe to call more than once.
func (s *StreamSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Attach claims the session's single stream slot. It reports false when
// another stream is already draining the queue.
func (s *StreamSession) Attach() bool {
	return s.attached.CompareAndSwap(false, true)
}

// Detach releases the stream slot.
func (s *StreamSession) Detach() {
	s.attached.Store(false)
}

// MarkInitialized records that the initialize handshake completed on
// this channel.
func (s *StreamSession) MarkInitialized() {
	s.initialized.Store(true)
}

// Initialized reports whether the initialize handshake completed.
func (s *StreamSession) Initialized() bool {
	return s.initialized.Load()
}
