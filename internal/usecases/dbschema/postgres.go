// Package dbschema implements the Postgres column-introspection tool.
package dbschema

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ColumnInfo is one row of the column catalog for a table.
type ColumnInfo struct {
	Name     string `json:"column_name"`
	DataType string `json:"data_type"`
}

// ConnectionInfo holds the credentials for one introspection query.
type ConnectionInfo struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// SchemaQuerier reads column metadata from a database.
type SchemaQuerier interface {
	// TableColumns returns the columns of the named table in ordinal
	// order.
	TableColumns(ctx context.Context, table string) ([]ColumnInfo, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// ConnectFunc opens a SchemaQuerier for the given credentials. Tests
// substitute a fake here.
type ConnectFunc func(ctx context.Context, info ConnectionInfo) (SchemaQuerier, error)

const columnQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_name = $1
ORDER BY ordinal_position`

type pgQuerier struct {
	conn *pgx.Conn
}

// Connect opens a Postgres connection for the given credentials. It is
// the production ConnectFunc.
func Connect(ctx context.Context, info ConnectionInfo) (SchemaQuerier, error) {
	parts := []string{
		fmt.Sprintf("host=%s", info.Host),
		fmt.Sprintf("port=%d", info.Port),
		fmt.Sprintf("user=%s", info.User),
		fmt.Sprintf("dbname=%s", info.Database),
	}
	if info.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", info.Password))
	}

	conn, err := pgx.Connect(ctx, strings.Join(parts, " "))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	return &pgQuerier{conn: conn}, nil
}

func (q *pgQuerier) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := q.conn.Query(ctx, columnQuery, table)
	if err != nil {
		return nil, errors.Wrap(err, "querying column catalog")
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, errors.Wrap(err, "scanning column row")
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "reading column rows")
	}
	return columns, nil
}

func (q *pgQuerier) Close(ctx context.Context) error {
	return q.conn.Close(ctx)
}
