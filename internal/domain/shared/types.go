package shared

// ServerInfo identifies an implementation on either side of the protocol.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities represents the server's advertised capabilities.
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates support for tools and catalog-change pushes.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tool is an immutable descriptor advertised in the catalog. Descriptors
// are published as whole snapshots; a descriptor is never mutated after
// it has been handed to the catalog.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON-schema-shaped description of a tool's
// arguments. It is deliberately a closed, tagged structure rather than
// an open map so descriptors stay well-formed as tools are added.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes one argument, recursively for object-typed
// arguments such as connection settings.
type SchemaProperty struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// Content represents one item of content returned by a tool.
type Content interface {
	GetType() string
}

// TextContent represents plain-text content.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// GetType returns the content type
func (t TextContent) GetType() string { return t.Type }

// NewTextContent builds a text content item.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}
