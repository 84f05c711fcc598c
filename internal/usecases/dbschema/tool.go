package dbschema

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

// ToolName is the catalog name of the column-introspection tool.
const ToolName = "get_table_columns"

// Executor introspects the column catalog of a Postgres table. Missing
// connection_info fields fall back to the environment-provided defaults
// it was constructed with.
type Executor struct {
	defaults ConnectionInfo
	connect  ConnectFunc
}

// NewExecutor creates an executor using the given credential defaults
// and the production Postgres connector.
func NewExecutor(defaults ConnectionInfo) *Executor {
	return NewExecutorWithConnect(defaults, Connect)
}

// NewExecutorWithConnect creates an executor with a custom connector.
func NewExecutorWithConnect(defaults ConnectionInfo, connect ConnectFunc) *Executor {
	return &Executor{defaults: defaults, connect: connect}
}

// Definition returns the tool's catalog descriptor.
func (e *Executor) Definition() shared.Tool {
	return shared.Tool{
		Name:        ToolName,
		Description: "Returns the column names and data types of a Postgres table, with a plain-text column dictionary.",
		InputSchema: shared.InputSchema{
			Type: "object",
			Properties: map[string]shared.SchemaProperty{
				"database_type": {
					Type:        "string",
					Description: "Database type; must be postgres or postgresql.",
				},
				"connection_info": {
					Type:        "object",
					Description: "Connection overrides; omitted fields fall back to server-side credentials.",
					Properties: map[string]shared.SchemaProperty{
						"host":     {Type: "string"},
						"port":     {Type: "integer"},
						"user":     {Type: "string"},
						"password": {Type: "string"},
						"database": {Type: "string"},
					},
				},
				"table_name": {
					Type:        "string",
					Description: "Name of the table to introspect.",
				},
			},
			Required: []string{"database_type", "table_name"},
		},
	}
}

// Call runs the introspection query and returns the raw rows as JSON
// plus a generated column dictionary.
func (e *Executor) Call(ctx context.Context, args map[string]interface{}) ([]shared.Content, error) {
	dbType, _ := args["database_type"].(string)
	if dbType == "" {
		return nil, errors.New("database_type is required")
	}
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql":
	default:
		return nil, errors.Errorf("unsupported database type %q, only postgres is supported", dbType)
	}

	table, _ := args["table_name"].(string)
	if table == "" {
		return nil, errors.New("table_name is required")
	}

	info := e.connectionInfo(args["connection_info"])

	querier, err := e.connect(ctx, info)
	if err != nil {
		return nil, err
	}
	defer func() { _ = querier.Close(ctx) }()

	columns, err := querier.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(columns)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling column rows")
	}

	return []shared.Content{
		shared.NewTextContent(string(raw)),
		shared.NewTextContent(columnDictionary(table, columns)),
	}, nil
}

// connectionInfo merges the request's connection_info over the executor
// defaults. JSON numbers arrive as float64; ports given as strings are
// tolerated.
func (e *Executor) connectionInfo(arg interface{}) ConnectionInfo {
	info := e.defaults

	overrides, ok := arg.(map[string]interface{})
	if !ok {
		return info
	}

	if host, ok := overrides["host"].(string); ok && host != "" {
		info.Host = host
	}
	if user, ok := overrides["user"].(string); ok && user != "" {
		info.User = user
	}
	if password, ok := overrides["password"].(string); ok && password != "" {
		info.Password = password
	}
	if database, ok := overrides["database"].(string); ok && database != "" {
		info.Database = database
	}
	switch port := overrides["port"].(type) {
	case float64:
		if port > 0 {
			info.Port = int(port)
		}
	case string:
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			info.Port = n
		}
	}
	return info
}

// columnDictionary renders one "name: type" line per column.
func columnDictionary(table string, columns []ColumnInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Columns for table %s:\n", table)
	if len(columns) == 0 {
		b.WriteString("(no columns found)\n")
		return b.String()
	}
	for _, col := range columns {
		fmt.Fprintf(&b, "%s: %s\n", col.Name, col.DataType)
	}
	return b.String()
}
