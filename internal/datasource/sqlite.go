package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/querydeck/querydeck/pkg/models"
)

// SQLiteHandle implements Handle over a database/sql connection to sqlite.
type SQLiteHandle struct {
	db *sql.DB
}

// OpenSQLite opens a sqlite database at the given DSN. Use ":memory:" for
// an in-process scratch database.
func OpenSQLite(dsn string) (*SQLiteHandle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteHandle{db: db}, nil
}

// NewSQLiteHandle wraps an existing database connection.
func NewSQLiteHandle(db *sql.DB) *SQLiteHandle {
	return &SQLiteHandle{db: db}
}

// Close releases the underlying connection.
func (h *SQLiteHandle) Close() error {
	return h.db.Close()
}

// Query executes SQL and scans the result into a frame.
func (h *SQLiteHandle) Query(ctx context.Context, query string) (*models.Frame, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	frame := &models.Frame{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			// sqlite returns TEXT as []byte through database/sql
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		frame.Records = append(frame.Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return frame, nil
}

// RegisterFrame materializes a frame as a table so generated SQL can
// target it. An existing table with the same name is replaced.
func (h *SQLiteHandle) RegisterFrame(ctx context.Context, name string, frame *models.Frame) error {
	if frame == nil || len(frame.Columns) == 0 {
		return fmt.Errorf("register frame %q: frame has no columns", name)
	}
	if !validIdentifier(name) {
		return fmt.Errorf("register frame: invalid table name %q", name)
	}
	for _, col := range frame.Columns {
		if !validIdentifier(col) {
			return fmt.Errorf("register frame %q: invalid column name %q", name, col)
		}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
		return fmt.Errorf("drop existing table: %w", err)
	}

	colDefs := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		colDefs[i] = fmt.Sprintf("%q %s", col, columnAffinity(frame, col))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", name, strings.Join(colDefs, ", "))
	if _, err := tx.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(frame.Columns)), ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %q VALUES (%s)", name, placeholders)
	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range frame.Records {
		args := make([]any, len(frame.Columns))
		for i, col := range frame.Columns {
			args[i] = record[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register tx: %w", err)
	}
	return nil
}

// Tables lists user tables in the database.
func (h *SQLiteHandle) Tables(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// columnAffinity picks a storage type from the first non-nil value seen.
func columnAffinity(frame *models.Frame, col string) string {
	for _, record := range frame.Records {
		switch record[col].(type) {
		case nil:
			continue
		case int, int32, int64, bool:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

// validIdentifier rejects names that could escape a quoted identifier.
func validIdentifier(name string) bool {
	return name != "" && !strings.ContainsAny(name, "\"`;")
}

var _ Handle = (*SQLiteHandle)(nil)
