package shared

import (
	"encoding/json"
)

// JSONRPCVersion is the version tag carried by every envelope.
const JSONRPCVersion = "2.0"

// ErrorCode represents a JSON-RPC error code.
type ErrorCode int

// Standard JSON-RPC error codes, plus the server-error code used for
// protocol faults on the streamable HTTP endpoint.
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
	ServerError    ErrorCode = -32000
)

// Canonical messages for the two transport-level fault envelopes. Both
// deliberately reveal nothing about the underlying failure.
const (
	BadRequestMessage    = "Bad Request: invalid session ID or method."
	InternalErrorMessage = "Internal server error."
)

// JSONRPCMessage is the interface that all JSON-RPC envelopes implement.
type JSONRPCMessage interface {
	// IsRequest returns true if the message is a request
	IsRequest() bool
	// IsResponse returns true if the message is a response
	IsResponse() bool
	// IsNotification returns true if the message is a notification
	IsNotification() bool
}

// JSONRPCRequest represents a call that expects exactly one response.
// The ID is kept opaque; clients may use strings or numbers.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsRequest returns true for requests
func (r JSONRPCRequest) IsRequest() bool { return true }

// IsResponse returns false for requests
func (r JSONRPCRequest) IsResponse() bool { return false }

// IsNotification returns false for requests
func (r JSONRPCRequest) IsNotification() bool { return false }

// JSONRPCResponse represents the result or error correlated to a request.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// IsRequest returns false for responses
func (r JSONRPCResponse) IsRequest() bool { return false }

// IsResponse returns true for responses
func (r JSONRPCResponse) IsResponse() bool { return true }

// IsNotification returns false for responses
func (r JSONRPCResponse) IsNotification() bool { return false }

// JSONRPCNotification represents a reply-less push message. It carries no ID.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// IsRequest returns false for notifications
func (n JSONRPCNotification) IsRequest() bool { return false }

// IsResponse returns false for notifications
func (n JSONRPCNotification) IsResponse() bool { return false }

// IsNotification returns true for notifications
func (n JSONRPCNotification) IsNotification() bool { return true }

// JSONRPCError represents a JSON-RPC error object.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewResponse creates a success response correlated to the given request.
func NewResponse(req JSONRPCRequest, result interface{}) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Result:  result,
	}
}

// NewErrorResponse creates an error response correlated to the given request.
func NewErrorResponse(req JSONRPCRequest, code ErrorCode, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Error: &JSONRPCError{
			Code:    int(code),
			Message: message,
		},
	}
}

// NewNotification creates a notification envelope for the given method.
func NewNotification(method string, params interface{}) JSONRPCNotification {
	return JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// BadRequestResponse is the envelope returned for an unresolvable session
// reference or a payload that is neither an initialize call nor addressed
// to an existing session. The ID is null because the fault is detected
// before any request is accepted.
func BadRequestResponse() JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      nil,
		Error: &JSONRPCError{
			Code:    int(ServerError),
			Message: BadRequestMessage,
		},
	}
}

// InternalErrorResponse is the envelope returned when request handling
// fails unexpectedly. The specific failure is logged server-side only.
func InternalErrorResponse(id interface{}) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    int(ServerError),
			Message: InternalErrorMessage,
		},
	}
}

// ParseMessage decodes a single raw JSON-RPC message into a request,
// notification, or response envelope. A method with an id is a request,
// a method without an id is a notification, anything else is treated as
// a response.
func ParseMessage(data []byte) (JSONRPCMessage, error) {
	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if probe.Method != "" {
		if probe.ID != nil {
			return JSONRPCRequest{
				JSONRPC: probe.JSONRPC,
				ID:      probe.ID,
				Method:  probe.Method,
				Params:  probe.Params,
			}, nil
		}
		var params interface{}
		if len(probe.Params) > 0 {
			if err := json.Unmarshal(probe.Params, &params); err != nil {
				return nil, err
			}
		}
		return JSONRPCNotification{
			JSONRPC: probe.JSONRPC,
			Method:  probe.Method,
			Params:  params,
		}, nil
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
