package shared

import "encoding/json"

// ProtocolVersion is the streamable HTTP protocol revision the server speaks.
const ProtocolVersion = "2025-03-26"

// MCP method names handled by the dispatcher.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
)

// Notification method names emitted by the server.
const (
	NotificationInitialized      = "notifications/initialized"
	NotificationToolsListChanged = "notifications/tools/list_changed"
	NotificationMessage          = "notifications/message"
)

// InitializeParams represents parameters for the initialize method.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ServerInfo `json:"clientInfo"`
}

// InitializeResult represents the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
	Instructions    string       `json:"instructions,omitempty"`
}

// ListToolsResult represents the result of the tools/list method.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents parameters for the tools/call method.
// Arguments is kept raw so a missing field can be told apart from an
// empty object; both name and arguments are mandatory.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallToolResult represents the result of the tools/call method.
type CallToolResult struct {
	Content []Content `json:"content"`
}
