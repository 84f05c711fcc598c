package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

type recordingSink struct {
	messages []shared.JSONRPCNotification
	failFrom int // send index at which to start failing, -1 never
}

func (r *recordingSink) ID() string { return "test-sink" }

func (r *recordingSink) Send(msg shared.JSONRPCMessage) error {
	if r.failFrom >= 0 && len(r.messages) >= r.failFrom {
		return ErrSessionClosed
	}
	r.messages = append(r.messages, msg.(shared.JSONRPCNotification))
	return nil
}

func TestNotificationStreamerSequence(t *testing.T) {
	sink := &recordingSink{failFrom: -1}
	streamer := NewNotificationStreamer(time.Millisecond, 2, nil)

	streamer.Run(context.Background(), sink)

	require.Len(t, sink.messages, 4)
	for _, msg := range sink.messages {
		assert.Equal(t, shared.NotificationMessage, msg.Method)
	}

	first := sink.messages[0].Params.(map[string]interface{})
	assert.Equal(t, "connection established", first["data"])

	for i, want := range []int{1, 2} {
		params := sink.messages[i+1].Params.(map[string]interface{})
		assert.Equal(t, want, params["sequence"])
		assert.NotEmpty(t, params["timestamp"])
	}

	last := sink.messages[3].Params.(map[string]interface{})
	assert.Equal(t, "stream complete", last["data"])
}

func TestNotificationStreamerAbortsOnSendFailure(t *testing.T) {
	sink := &recordingSink{failFrom: 2}
	streamer := NewNotificationStreamer(time.Millisecond, 5, nil)

	streamer.Run(context.Background(), sink)

	// established plus one periodic message, then the failing send ends the run
	assert.Len(t, sink.messages, 2)
}

func TestNotificationStreamerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{failFrom: -1}
	streamer := NewNotificationStreamer(time.Hour, 2, nil)

	done := make(chan struct{})
	go func() {
		streamer.Run(ctx, sink)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop on context cancel")
	}
	assert.Len(t, sink.messages, 1)
}
