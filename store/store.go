// Package store defines the contract for the relational data adapter.
package store

import "context"

// QueryOutcome is the structured result of executing a query. Execution never
// raises: failures are carried in Error with Success=false. A new attempt
// always produces a new outcome.
type QueryOutcome struct {
	Success bool     `json:"success"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error,omitempty"`
	Tables  []string `json:"tables_referenced,omitempty"`
}

// RowCount returns the number of rows in the outcome.
func (o QueryOutcome) RowCount() int {
	return len(o.Rows)
}

// Store executes queries against a fixed relational schema and exposes
// textual schema descriptions used to bound prompt size.
type Store interface {
	// Execute runs a query and returns a structured outcome, converting any
	// execution error into the outcome rather than returning it.
	Execute(ctx context.Context, query string) QueryOutcome

	// CompactSchema returns a single-line-per-table description of the key
	// tables: Table(col1, col2, ...).
	CompactSchema() string

	// SchemaDescription returns a verbose human-readable schema listing.
	SchemaDescription() string

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
