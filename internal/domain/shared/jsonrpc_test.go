package shared

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
		require.NoError(t, err)

		req, ok := msg.(JSONRPCRequest)
		require.True(t, ok)
		assert.True(t, msg.IsRequest())
		assert.Equal(t, "tools/list", req.Method)
		assert.Equal(t, float64(1), req.ID)
	})

	t.Run("string id", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":"abc","method":"ping"}`))
		require.NoError(t, err)

		req, ok := msg.(JSONRPCRequest)
		require.True(t, ok)
		assert.Equal(t, "abc", req.ID)
	})

	t.Run("notification", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		require.NoError(t, err)

		assert.True(t, msg.IsNotification())
		assert.False(t, msg.IsRequest())
	})

	t.Run("notification params carried through", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info","data":"hi"}}`))
		require.NoError(t, err)

		n, ok := msg.(JSONRPCNotification)
		require.True(t, ok)
		params, ok := n.Params.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "info", params["level"])
		assert.Equal(t, "hi", params["data"])
	})

	t.Run("response", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"jsonrpc":"2.0","id":7,"result":{}}`))
		require.NoError(t, err)
		assert.True(t, msg.IsResponse())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseMessage([]byte(`{not json`))
		assert.Error(t, err)
	})
}

func TestBadRequestResponse(t *testing.T) {
	data, err := json.Marshal(BadRequestResponse())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"jsonrpc": "2.0",
		"id": null,
		"error": {"code": -32000, "message": "Bad Request: invalid session ID or method."}
	}`, string(data))
}

func TestInternalErrorResponse(t *testing.T) {
	resp := InternalErrorResponse(42)

	require.NotNil(t, resp.Error)
	assert.Equal(t, int(ServerError), resp.Error.Code)
	assert.Equal(t, InternalErrorMessage, resp.Error.Message)
	assert.Equal(t, 42, resp.ID)
}

func TestNewResponse(t *testing.T) {
	req := JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: "req-1", Method: MethodPing}

	resp := NewResponse(req, struct{}{})
	assert.Equal(t, "req-1", resp.ID)
	assert.Nil(t, resp.Error)

	errResp := NewErrorResponse(req, MethodNotFound, "Method not found")
	require.NotNil(t, errResp.Error)
	assert.Equal(t, -32601, errResp.Error.Code)
}
