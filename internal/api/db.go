package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// MaxQueryRows caps the rows returned by a single query.
const MaxQueryRows = 1000

// DBHandler serves SQL over the DuckDB mirror of the catalog.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	if tables == nil {
		tables = []string{}
	}

	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"SQL query to execute"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns   []string         `json:"columns" doc:"Column names"`
		Rows      []map[string]any `json:"rows" doc:"Query results"`
		Count     int              `json:"count" doc:"Number of rows returned"`
		Truncated bool             `json:"truncated,omitempty" doc:"More rows matched than were returned"`
	}
}

// readStatements are the leading keywords of statements Query accepts.
var readStatements = []string{"SELECT", "WITH", "FROM", "VALUES", "DESCRIBE", "SUMMARIZE"}

// readOnly returns q without trailing semicolons, or an error when q is not a
// single read statement.
func readOnly(q string) (string, error) {
	q = strings.TrimRight(strings.TrimSpace(q), "; \t\r\n")
	if strings.Contains(q, ";") {
		return "", errors.New("only one statement is allowed")
	}
	first, _, _ := strings.Cut(strings.Join(strings.Fields(q), " "), " ")
	for _, kw := range readStatements {
		if strings.EqualFold(first, kw) {
			return q, nil
		}
	}
	return "", fmt.Errorf("only read statements are allowed (%s)", strings.Join(readStatements, ", "))
}

// Query executes a read-only SQL query against DuckDB. The query runs in a
// transaction that is always rolled back.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	q, err := readOnly(input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to start transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = []map[string]any{}
	for rows.Next() {
		if len(out.Body.Rows) == MaxQueryRows {
			out.Body.Truncated = true
			break
		}
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// BLOB columns (e.g. WKB) would otherwise encode as base64
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[col] = values[i]
		}
		out.Body.Rows = append(out.Body.Rows, row)
	}
	out.Body.Count = len(out.Body.Rows)
	return out, nil
}
