// Package sqlstore adapts any database/sql driver with information_schema
// support (DuckDB, Postgres) to the store contract.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/sweetpotato0/askdata/errors"
	"github.com/sweetpotato0/askdata/pkg/logging"
	"github.com/sweetpotato0/askdata/store"
)

// defaultKeyTables is the fixed subset of tables surfaced in the compact
// schema to keep query-generation prompts small.
var defaultKeyTables = []string{"Orders", "Order Details", "Products", "Customers", "Categories"}

type column struct {
	name     string
	dataType string
}

// Option customises the store.
type Option func(*SQLStore)

// WithKeyTables overrides the key-table subset used by CompactSchema.
func WithKeyTables(tables []string) Option {
	return func(s *SQLStore) {
		if len(tables) > 0 {
			s.keyTables = tables
		}
	}
}

// WithMaxRows caps how many rows Execute materialises per query.
func WithMaxRows(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// SQLStore implements store.Store over database/sql. The schema is
// introspected once at construction and cached; the dataset is fixed.
type SQLStore struct {
	db        *sql.DB
	schema    map[string][]column
	tables    []string // sorted table names
	keyTables []string
	maxRows   int
	logger    *slog.Logger
}

// New introspects the schema and returns a ready store. A database that
// cannot be reached or has no tables is fatal at startup.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		db:        db,
		keyTables: defaultKeyTables,
		maxRows:   1000,
		logger:    logging.WithComponent("sqlstore"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := s.loadSchema(ctx); err != nil {
		return nil, err
	}
	if len(s.schema) == 0 {
		return nil, fmt.Errorf("%w: no tables found", apperrors.ErrStoreUnavailable)
	}
	s.logger.Info("schema loaded", "tables", len(s.schema))
	return s, nil
}

func (s *SQLStore) loadSchema(ctx context.Context) error {
	const q = `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_name, ordinal_position`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: introspect schema: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	s.schema = make(map[string][]column)
	for rows.Next() {
		var table, name, dataType string
		if err := rows.Scan(&table, &name, &dataType); err != nil {
			return fmt.Errorf("scan schema row: %w", err)
		}
		s.schema[table] = append(s.schema[table], column{name: name, dataType: dataType})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema rows: %w", err)
	}

	s.tables = make([]string, 0, len(s.schema))
	for table := range s.schema {
		s.tables = append(s.tables, table)
	}
	sort.Strings(s.tables)
	return nil
}

// Execute implements store.Store. Any error is folded into the outcome.
func (s *SQLStore) Execute(ctx context.Context, query string) store.QueryOutcome {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Debug("query failed", "error", err)
		return store.QueryOutcome{Success: false, Error: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return store.QueryOutcome{Success: false, Error: err.Error()}
	}

	var collected [][]any
	for rows.Next() {
		if len(collected) >= s.maxRows {
			break
		}
		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return store.QueryOutcome{Success: false, Error: err.Error()}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		collected = append(collected, values)
	}
	if err := rows.Err(); err != nil {
		return store.QueryOutcome{Success: false, Error: err.Error()}
	}

	return store.QueryOutcome{
		Success: true,
		Columns: cols,
		Rows:    collected,
		Tables:  s.extractTables(query),
	}
}

// extractTables reports which known tables a query references, by word-bounded
// case-insensitive match, sorted and deduplicated.
func (s *SQLStore) extractTables(query string) []string {
	upper := strings.ToUpper(query)
	var referenced []string
	for _, table := range s.tables {
		pattern := `\b` + regexp.QuoteMeta(strings.ToUpper(table)) + `\b`
		if matched, _ := regexp.MatchString(pattern, upper); matched {
			referenced = append(referenced, table)
		}
	}
	sort.Strings(referenced)
	return referenced
}

// CompactSchema implements store.Store.
func (s *SQLStore) CompactSchema() string {
	var lines []string
	for _, table := range s.keyTables {
		cols, ok := s.schema[table]
		if !ok {
			continue
		}
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = col.name
		}
		lines = append(lines, fmt.Sprintf("%s(%s)", table, strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

// SchemaDescription implements store.Store. Key tables are listed first.
func (s *SQLStore) SchemaDescription() string {
	var b strings.Builder
	b.WriteString("# Database Schema\n")

	listed := make(map[string]bool)
	describe := func(table string) {
		cols, ok := s.schema[table]
		if !ok || listed[table] {
			return
		}
		listed[table] = true
		fmt.Fprintf(&b, "\n## %s\n", table)
		for _, col := range cols {
			fmt.Fprintf(&b, "  - %s: %s\n", col.name, col.dataType)
		}
	}

	for _, table := range s.keyTables {
		describe(table)
	}
	for _, table := range s.tables {
		describe(table)
	}
	return b.String()
}

// Ping implements store.Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// EnsureCompatViews creates lowercase convenience views over the key tables
// so generated queries that guess snake_case names still resolve. Failures
// are logged and ignored; the views are an optimisation, not a requirement.
func (s *SQLStore) EnsureCompatViews(ctx context.Context) {
	views := map[string]string{
		"orders":      "Orders",
		"order_items": `"Order Details"`,
		"products":    "Products",
		"customers":   "Customers",
		"categories":  "Categories",
	}
	for view, source := range views {
		stmt := fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS SELECT * FROM %s", view, source)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Warn("compat view not created", "view", view, "error", err)
		}
	}
}
