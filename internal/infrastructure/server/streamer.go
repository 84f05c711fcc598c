package server

import (
	"context"
	"fmt"
	"time"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
	"github.com/FreePeak/pg-schema-mcp-server/internal/infrastructure/logging"
)

// notificationSink is the send side of a stream, satisfied by
// *StreamSession.
type notificationSink interface {
	ID() string
	Send(msg shared.JSONRPCMessage) error
}

// NotificationStreamer emits the bounded informational message sequence
// on a session's channel: one "connection established" message up
// front, then one sequence-numbered message per tick, and a final
// "stream complete" message. A failed send or a cancelled context ends
// the run; the streamer never reports errors to its caller.
type NotificationStreamer struct {
	interval time.Duration
	count    int
	logger   *logging.Logger
}

// NewNotificationStreamer creates a streamer emitting count periodic
// messages at the given interval.
func NewNotificationStreamer(interval time.Duration, count int, logger *logging.Logger) *NotificationStreamer {
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationStreamer{
		interval: interval,
		count:    count,
		logger:   logger,
	}
}

// Run performs one stream run on the given sink. It blocks until the
// run completes, the context is cancelled, or a send fails.
func (ns *NotificationStreamer) Run(ctx context.Context, sink notificationSink) {
	if !ns.send(sink, map[string]interface{}{
		"level": "info",
		"data":  "connection established",
	}) {
		return
	}

	ticker := time.NewTicker(ns.interval)
	defer ticker.Stop()

	for seq := 1; seq <= ns.count; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !ns.send(sink, map[string]interface{}{
			"level":     "info",
			"data":      fmt.Sprintf("periodic notification %d", seq),
			"sequence":  seq,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}) {
			return
		}
	}

	ns.send(sink, map[string]interface{}{
		"level": "info",
		"data":  "stream complete",
	})
}

func (ns *NotificationStreamer) send(sink notificationSink, params map[string]interface{}) bool {
	if err := sink.Send(shared.NewNotification(shared.NotificationMessage, params)); err != nil {
		ns.logger.Warn("stream send failed, ending run", logging.Fields{
			"sessionID": sink.ID(),
			"error":     err.Error(),
		})
		return false
	}
	return true
}
