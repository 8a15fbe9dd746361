package tabular

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Iterator yields one projected row at a time. Close it when done.
type Iterator struct {
	rows    *sql.Rows
	columns []string
}

// Next returns the next row, or false when exhausted.
func (it *Iterator) Next() (map[string]any, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Err()
	}

	values := make([]any, len(it.columns))
	ptrs := make([]any, len(it.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, false, fmt.Errorf("scanning row; %w", err)
	}

	row := make(map[string]any, len(it.columns))
	for i, col := range it.columns {
		row[col] = values[i]
	}
	return row, true, nil
}

// Close releases the underlying cursor.
func (it *Iterator) Close() error {
	return it.rows.Close()
}

// Query returns a row iterator projected to the requested columns. The
// customer predicate is always injected; legacy rows with a null customer id
// are tolerated for backward compatibility.
func (s *Store) Query(ctx context.Context, table string, columns []string, customerID string) (*Iterator, error) {
	existing, err := s.columnsOf(ctx, table)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		for col := range existing {
			columns = append(columns, col)
		}
		sort.Strings(columns)
	}
	for _, col := range columns {
		if !existing[strings.ToLower(col)] {
			return nil, fmt.Errorf("unknown column %q in table %s", col, table)
		}
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE customer_id = ? OR customer_id IS NULL",
		strings.Join(columns, ", "), table)

	rows, err := s.db.QueryContext(ctx, stmt, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying %s; %w", table, err)
	}
	return &Iterator{rows: rows, columns: columns}, nil
}

// RowCount returns the number of rows visible to the customer.
func (s *Store) RowCount(ctx context.Context, table, customerID string) (int, error) {
	if _, err := s.columnsOf(ctx, table); err != nil {
		return 0, err
	}

	var count int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE customer_id = ? OR customer_id IS NULL", table)
	if err := s.db.QueryRowContext(ctx, stmt, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows of %s; %w", table, err)
	}
	return count, nil
}

// Tables lists the user tables currently present.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables; %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(encoded)
}
