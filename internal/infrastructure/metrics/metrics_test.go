package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	recorder := New("testns")

	recorder.SessionOpened()
	recorder.SessionOpened()
	recorder.SessionClosed()
	recorder.RequestHandled("tools/call", "ok")
	recorder.NotificationSent("notifications/message")
	recorder.ToolCallObserved("get_table_columns", "ok", 25*time.Millisecond)

	rr := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "testns_active_sessions 1")
	assert.Contains(t, string(body), `testns_requests_total{method="tools/call",status="ok"} 1`)
	assert.Contains(t, string(body), `testns_notifications_sent_total{method="notifications/message"} 1`)
	assert.Contains(t, string(body), "testns_tool_call_duration_seconds_count")
}

func TestRecordersAreIndependent(t *testing.T) {
	// separate registries, so constructing two recorders must not panic
	// with duplicate collector registration
	a := New("dup")
	b := New("dup")
	a.SessionOpened()
	assert.NotNil(t, b)
}
